//go:build !darwin && !windows

package config

func defaultInputFormat() string {
	return "pulse"
}
