package config

const (
	DefaultRetryCount    = 6
	DefaultRetryInterval = 10 // seconds
)

type ESConfig struct {
	Addresses []string `mapstructure:"addresses"`
	User      string   `mapstructure:"user"`
	Password  string   `mapstructure:"password"`
}

type MigrateCfg struct {
	SourceES string `mapstructure:"source_es"`
	TargetES string `mapstructure:"target_es"`

	IndexPattern   string `mapstructure:"index_pattern"`
	ExcludePattern string `mapstructure:"exclude_pattern"`

	OverwriteIfBroken  bool `mapstructure:"overwrite_if_broken"`
	CloseOnSuccess     bool `mapstructure:"close_on_success"`
	AbortOnLockFailure bool `mapstructure:"abort_on_lock_failure"`

	RetryCount    uint `mapstructure:"retry_count"`
	RetryInterval uint `mapstructure:"retry_interval"`
}

type StatusCfg struct {
	Address  string `mapstructure:"address"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type Config struct {
	ESConfigs map[string]*ESConfig `mapstructure:"elastics"`
	Migrate   *MigrateCfg          `mapstructure:"migrate"`
	Level     string               `mapstructure:"level"`
	Status    *StatusCfg           `mapstructure:"status"`
}
