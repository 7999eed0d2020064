package main

import (
	"os"
	"path/filepath"
	"strings"

	C "github.com/tradelog/tradelog/constant"
	"github.com/tradelog/tradelog/option"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/json"

	"gopkg.in/yaml.v3"
)

// readConfig loads a JSON or YAML configuration file. YAML is decoded into
// generic values first and then goes through the JSON decoder, so both
// formats share the same option types and duration parsing.
func readConfig(path string) (option.Options, error) {
	var options option.Options
	if path == "" {
		return defaultOptions(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return options, E.Cause(err, "read config at ", path)
	}
	return parseConfig(content, filepath.Ext(path))
}

func parseConfig(content []byte, extension string) (option.Options, error) {
	var options option.Options
	switch strings.ToLower(extension) {
	case ".yaml", ".yml":
		var document any
		err := yaml.Unmarshal(content, &document)
		if err != nil {
			return options, E.Cause(err, "decode yaml config")
		}
		content, err = json.Marshal(document)
		if err != nil {
			return options, E.Cause(err, "convert yaml config")
		}
	}
	err := json.UnmarshalDisallowUnknownFields(content, &options)
	if err != nil {
		return options, E.Cause(err, "decode config")
	}
	if options.Log == nil {
		defaults := defaultOptions()
		options.Log = defaults.Log
	}
	return options, nil
}

func defaultOptions() option.Options {
	return option.Options{
		Log: &option.LogOptions{
			Level: "info",
			Sinks: map[string]option.SinkOptions{
				"console": {Type: C.SinkTypeStdout, Format: C.FormatText},
			},
			Enrichers: []string{C.EnricherSimulationTime, C.EnricherRunID},
		},
	}
}
