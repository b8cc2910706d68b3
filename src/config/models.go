package config

// Config is the full set of runtime parameters, populated from environment
// variables (see each field's env tag) with an optional YAML overlay at
// ConfigFilePath (§6.1).
type Config struct {
	ConfigFilePath string `env:"POCKETMQTT_CONFIG_FILE_PATH" yaml:"-"`

	Environment string `env:"POCKETMQTT_ENV" envDefault:"production" yaml:"environment" validate:"oneof=development production"`

	MQTTPort   int `env:"POCKETMQTT_MQTT_PORT" envDefault:"1883" yaml:"mqttPort" validate:"gt=0,lt=65536"`
	MQTTWSPort int `env:"POCKETMQTT_MQTT_WS_PORT" envDefault:"0" yaml:"mqttWsPort" validate:"gte=0,lt=65536"`

	TenantTokenPepper string `env:"POCKETMQTT_TENANT_TOKEN_PEPPER" yaml:"-"`

	DatabaseDSN string `env:"POCKETMQTT_DATABASE_DSN" yaml:"-" validate:"required"`

	MaxPayloadBytes int `env:"POCKETMQTT_MAX_PAYLOAD_BYTES" envDefault:"65536" yaml:"maxPayloadBytes" validate:"gt=0"`

	BatchMaxSize         int `env:"POCKETMQTT_BATCH_MAX_SIZE" envDefault:"100" yaml:"batchMaxSize" validate:"gt=0"`
	BatchFlushIntervalMs int `env:"POCKETMQTT_BATCH_FLUSH_INTERVAL_MS" envDefault:"2000" yaml:"batchFlushIntervalMs" validate:"gt=0"`
	BatchMaxRetries      int `env:"POCKETMQTT_BATCH_MAX_RETRIES" envDefault:"3" yaml:"batchMaxRetries" validate:"gt=0"`

	BootstrapRatePerMinute int `env:"POCKETMQTT_BOOTSTRAP_RATE_PER_MINUTE" envDefault:"5" yaml:"bootstrapRatePerMinute" validate:"gt=0"`
}

// IsProduction reports whether the configured environment is production,
// the point at which an unset pepper becomes fatal (§4.1).
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
