package worker

type Config struct {
	NumWorkers int `yaml:"num_workers"`
}
