package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// VocabularyConfig carries operator-supplied extensions to the field
// normalizer's built-in matching vocabulary. Keys are target attribute
// names (total_amount, tax_amount, net_amount, currency, document_date,
// due_date, vendor_name, vendor_tax_id, invoice_number, customer_name);
// values are extra case-insensitive substring patterns.
type VocabularyConfig struct {
	Patterns map[string][]string `mapstructure:"patterns"`
}

func DefaultVocabularyConfig() VocabularyConfig {
	return VocabularyConfig{Patterns: map[string][]string{}}
}

// VocabularyHolder exposes the current vocabulary snapshot and hot-reloads
// it when the backing file changes.
type VocabularyHolder struct {
	current atomic.Value // holds VocabularyConfig
}

func NewVocabularyHolder() (*VocabularyHolder, error) {
	v := viper.New()

	v.SetConfigName("vocabulary")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/corematch/config")
	v.AddConfigPath("/etc/corematch")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COREMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &VocabularyHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultVocabularyConfig())
		return holder, nil
	}

	var cfg VocabularyConfig
	if err := v.UnmarshalKey("vocabulary", &cfg); err != nil {
		return nil, err
	}
	if err := validateVocabularyConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Patterns == nil {
		cfg.Patterns = map[string][]string{}
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated VocabularyConfig
		if err := v.UnmarshalKey("vocabulary", &updated); err != nil {
			log.Printf("[vocabulary-config] reload failed: %v", err)
			return
		}
		if err := validateVocabularyConfig(updated); err != nil {
			log.Printf("[vocabulary-config] invalid config ignored: %v", err)
			return
		}
		if updated.Patterns == nil {
			updated.Patterns = map[string][]string{}
		}
		holder.current.Store(updated)
		log.Printf("[vocabulary-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticVocabulary returns a holder pinned to the given config, for
// callers that do not watch a file.
func NewStaticVocabulary(cfg VocabularyConfig) *VocabularyHolder {
	if cfg.Patterns == nil {
		cfg.Patterns = map[string][]string{}
	}
	holder := &VocabularyHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *VocabularyHolder) Get() VocabularyConfig {
	return h.current.Load().(VocabularyConfig)
}

func validateVocabularyConfig(cfg VocabularyConfig) error {
	for attr, patterns := range cfg.Patterns {
		if strings.TrimSpace(attr) == "" {
			return errors.New("vocabulary.patterns key cannot be empty")
		}
		for _, p := range patterns {
			if strings.TrimSpace(p) == "" {
				return errors.New("vocabulary.patterns values cannot be empty")
			}
		}
	}
	return nil
}
