package config

func defaultInputFormat() string {
	return "avfoundation"
}
