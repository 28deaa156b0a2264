package offstage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml"
)

// envPaintFlags lists paint debug flags, comma or colon separated, e.g.
//
//	OFFSTAGE_PAINT=disable-clipped-redraws,redraws
const envPaintFlags = "OFFSTAGE_PAINT"

// Config tunes frame presentation. The zero value disables vblank sync and
// warm-up suppression; start from DefaultConfig.
type Config struct {
	// SyncToVBlank throttles swaps to the display refresh.
	SyncToVBlank bool `toml:"sync_to_vblank"`

	// WarmupFrames is how many initial frames paint unclipped while the
	// driver settles.
	WarmupFrames int `toml:"warmup_frames"`

	// DisableClippedRedraws forces every paint to cover the whole stage.
	// The resolved clip is still computed and handed to the paint, which
	// keeps clipping decisions visible without affecting output.
	DisableClippedRedraws bool `toml:"disable_clipped_redraws"`

	// ShowRedrawHints outlines each resolved clip in red.
	ShowRedrawHints bool `toml:"show_redraw_hints"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SyncToVBlank: true,
		WarmupFrames: 3,
	}
}

// LoadConfig reads a TOML file over the defaults. On error the defaults
// come back alongside it, so the result is always usable.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("offstage: reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("offstage: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig looks up offstage/config.toml in the XDG config
// directories, returning defaults when absent or unreadable. OFFSTAGE_PAINT
// flags apply on top either way.
func LoadUserConfig() Config {
	cfg := DefaultConfig()
	if path, err := xdg.SearchConfigFile(filepath.Join("offstage", "config.toml")); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			log.WithError(err).Warn("offstage: ignoring unreadable config file")
		} else {
			cfg = loaded
		}
	}
	return cfg.WithPaintEnv()
}

// WithPaintEnv returns c with the OFFSTAGE_PAINT debug flags folded in.
func (c Config) WithPaintEnv() Config {
	raw := os.Getenv(envPaintFlags)
	if raw == "" {
		return c
	}
	for _, flag := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ':'
	}) {
		switch strings.TrimSpace(flag) {
		case "disable-clipped-redraws":
			c.DisableClippedRedraws = true
		case "redraws":
			c.ShowRedrawHints = true
		case "":
		default:
			log.WithField("flag", flag).Warnf("offstage: unknown %s flag", envPaintFlags)
		}
	}
	return c
}
