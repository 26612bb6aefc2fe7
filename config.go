package main

import (
	"fmt"
	"strings"

	"github.com/hesusruiz/vcutils/yaml"
	"github.com/hesusruiz/wikicore/blobstore"
	"github.com/hesusruiz/wikicore/versioning"
	"github.com/hesusruiz/wikicore/wiki"
	"go.uber.org/zap"
)

// Versions are kept here unless configured otherwise
const defaultStoreDir = ".wikicore"

// loadConfig reads the YAML configuration file. Without a file name all the
// values take their defaults.
func loadConfig(fileName string) (*yaml.YAML, error) {
	if fileName == "" {
		return yaml.ParseYaml("")
	}
	cfg, err := yaml.ParseYamlFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("reading configuration %s: %w", fileName, err)
	}
	return cfg, nil
}

// splitList splits a comma separated value, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func blacklist(words []string) func(string) bool {
	if len(words) == 0 {
		return nil
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return func(word string) bool {
		return set[word]
	}
}

// formatOptions builds the parser options from the "parser" section
func formatOptions(cfg *yaml.YAML) *wiki.FormatOptions {
	opts := &wiki.FormatOptions{
		WithCamelCase:        cfg.Bool("parser.camelCase"),
		FootnotesAsWikiWords: cfg.Bool("parser.footnotesAsWikiWords"),
		AutoLinkMode:         wiki.AutoLinkMode(cfg.String("parser.autoLinkMode", string(wiki.AutoLinkOff))),
		CcWordBlacklisted:    blacklist(splitList(cfg.String("parser.ccBlacklist", ""))),
		NccWordBlacklisted:   blacklist(splitList(cfg.String("parser.nccBlacklist", ""))),
	}
	if opts.AutoLinkMode == wiki.AutoLinkRelax {
		opts.AutoLinkRelaxInfo = wiki.BuildAutoLinkRelaxInfo(splitList(cfg.String("parser.autoLinkWords", "")))
	}
	return opts
}

// overviewOptions builds the versioning options from the "versioning" section
func overviewOptions(cfg *yaml.YAML, log *zap.SugaredLogger) []versioning.Option {
	return []versioning.Option{
		versioning.WithLogger(log),
		versioning.WithCompleteSteps(cfg.Int("versioning.completeSteps", versioning.DefaultCompleteSteps)),
		versioning.WithStoreHint(blobstore.ParseStoreHint(cfg.String("versioning.storageLocation", "intern"))),
		versioning.WithCompression(cfg.Bool("versioning.compress")),
	}
}

// storeDir returns the directory of the blob store. The flag wins over the configuration.
func storeDir(flag string, cfg *yaml.YAML) string {
	if flag != "" {
		return flag
	}
	return cfg.String("store.dir", defaultStoreDir)
}
