package model

import "fmt"

type OverwriteMode string

const (
	ModeAlways   OverwriteMode = "always"
	ModeFastComp OverwriteMode = "fast-comp"
	ModeDeepComp OverwriteMode = "deep-comp"
	ModeNever    OverwriteMode = "never"
)

var Modes = []OverwriteMode{ModeAlways, ModeFastComp, ModeDeepComp, ModeNever}

func ParseOverwriteMode(s string) (OverwriteMode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}

	return "", fmt.Errorf("unknown overwrite mode %q (want one of %v)", s, Modes)
}

// Options is the validated, immutable input of a mirroring pass.
type Options struct {
	SrcRoot    string
	DstRoot    string
	Mode       OverwriteMode
	OnlyNewest []string
	Include    []string
	Exclude    []string
	DryRun     bool
	Workers    int
	Strict     bool
}
