// Package tokenizerenv prepares the process for github.com/sugarme/tokenizer.
//
// That package's init logs its cache directory through the standard logger
// and creates ~/.cache/tokenizer. snapfind only reads tokenizer.json from the
// model directory, so this package points the cache at the existing temp
// directory and mutes the standard logger until Restore. Go initializes it
// before the tokenizer because it imports only the standard library and its
// path sorts first. Importers call Restore from their own init.
package tokenizerenv

import (
	"io"
	"log"
	"os"
)

const cacheEnv = "GO_TOKENIZER"

var (
	prevOutput io.Writer
	redirected bool
)

func init() {
	if os.Getenv(cacheEnv) == "" {
		redirected = os.Setenv(cacheEnv, os.TempDir()) == nil
	}
	prevOutput = log.Writer()
	log.SetOutput(io.Discard)
}

// Restore re-enables the standard logger and clears the cache variable if
// this package set it.
func Restore() {
	if prevOutput != nil {
		log.SetOutput(prevOutput)
	}
	if redirected {
		_ = os.Unsetenv(cacheEnv)
	}
}

// Redirected reports whether the tokenizer cache was pointed at the temp directory.
func Redirected() bool {
	return redirected
}
