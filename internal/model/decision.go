package model

type Action string

const (
	ActionCreateDir Action = "create-dir"
	ActionCopy      Action = "copy"
	ActionSkip      Action = "skip"
	ActionDelete    Action = "delete"
)

type Reason string

const (
	ReasonMissing        Reason = "missing"
	ReasonAlways         Reason = "always"
	ReasonSizeDiffers    Reason = "size-differs"
	ReasonContentDiffers Reason = "content-differs"
	ReasonLinkChanged    Reason = "link-changed"
	ReasonMTimeDiffers   Reason = "mtime-differs"
	ReasonUnchanged      Reason = "unchanged"
	ReasonNeverOverwrite Reason = "never-overwrite"
	ReasonSuperseded     Reason = "superseded"
	ReasonStale          Reason = "stale"
	ReasonNewest         Reason = "newest"
	ReasonKindConflict   Reason = "kind-conflict"
	ReasonError          Reason = "error"
)

type Decision struct {
	Action  Action
	RelPath string
	Reason  Reason
}

func (d Decision) String() string {
	return string(d.Action) + " " + d.RelPath + " (" + string(d.Reason) + ")"
}

type Outcome struct {
	Decision
	Size int64
	Err  error
}
