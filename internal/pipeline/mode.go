package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
)

// ModeKind selects how the identity hash is salted.
type ModeKind int

const (
	// ModeOff disables pipelining. The hash is still total over the links.
	ModeOff ModeKind = iota
	// ModeSalt mixes a fixed salt into the hash.
	ModeSalt
	// ModeAuto mixes in the modification times of local sources.
	ModeAuto
)

func (k ModeKind) String() string {
	switch k {
	case ModeSalt:
		return "salt"
	case ModeAuto:
		return "auto"
	default:
		return "off"
	}
}

// Mode is the parsed form of the `pipeline` option.
type Mode struct {
	Kind ModeKind
	Salt string
	// Token, when positive, is appended to returned URLs as `?Token`.
	Token int64
}

// Enabled reports whether bundling is requested.
func (m Mode) Enabled() bool {
	return m.Kind != ModeOff
}

// ParseMode interprets a configuration value: false/nil/""/"0"/0 disable,
// true and 1 salt with "1", "auto" enables modification time salting, an
// integer greater than one salts with the integer and adds a cache-bust
// token, and any other string is used as the salt verbatim.
func ParseMode(v any) (Mode, error) {
	switch t := v.(type) {
	case nil:
		return Mode{}, nil
	case Mode:
		return t, nil
	case bool:
		if !t {
			return Mode{}, nil
		}
		return Mode{Kind: ModeSalt, Salt: "1"}, nil
	case string:
		switch strings.TrimSpace(t) {
		case "", "0":
			return Mode{}, nil
		case "auto":
			return Mode{Kind: ModeAuto}, nil
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return modeFromInt(n), nil
		}
		return Mode{Kind: ModeSalt, Salt: t}, nil
	case int:
		return modeFromInt(int64(t)), nil
	case int32:
		return modeFromInt(int64(t)), nil
	case int64:
		return modeFromInt(t), nil
	case uint:
		return modeFromInt(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Mode{}, fmt.Errorf("pipeline value %d out of range", t)
		}
		return modeFromInt(int64(t)), nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < math.MaxInt64 {
			return modeFromInt(int64(t)), nil
		}
		return Mode{Kind: ModeSalt, Salt: strconv.FormatFloat(t, 'f', -1, 64)}, nil
	default:
		return Mode{}, fmt.Errorf("unsupported pipeline value of type %T", v)
	}
}

func modeFromInt(n int64) Mode {
	switch {
	case n == 0:
		return Mode{}
	case n > 1:
		return Mode{Kind: ModeSalt, Salt: strconv.FormatInt(n, 10), Token: n}
	default:
		return Mode{Kind: ModeSalt, Salt: strconv.FormatInt(n, 10)}
	}
}

// querySuffix returns the cache-bust query string for the mode.
func (m Mode) querySuffix() string {
	if m.Token <= 0 {
		return ""
	}
	return "?" + strconv.FormatInt(m.Token, 10)
}

// salt computes the value mixed into the identity hash for links.
func (m Mode) salt(root string, links []string) string {
	switch m.Kind {
	case ModeSalt:
		return m.Salt
	case ModeAuto:
		var b strings.Builder
		for _, link := range links {
			if assets.IsRemote(link) {
				continue
			}
			fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(link)))
			if err != nil {
				continue
			}
			b.WriteString(strconv.FormatInt(fi.ModTime().Unix(), 10))
		}
		return b.String()
	default:
		return ""
	}
}
