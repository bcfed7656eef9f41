package cmd

import (
	"errors"
	"fmt"
)

func errChainNotFound(chainName string) error {
	return fmt.Errorf("chain %q not found in config", chainName)
}

func errPathNotLinked(pathName string) error {
	return fmt.Errorf("path %q has no client on both ends, run link first", pathName)
}

var (
	errBothFormats   = errors.New("can't pass both --json and --yaml, must pick one")
	errConfigMissing = errors.New("config does not exist, run config init first")
)
