package clickhouse

type Config struct {
	Addr     string `yaml:"addr"`
	DB       string `yaml:"db"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}
