package config

func defaultInputFormat() string {
	return "dshow"
}
