package wire

// Reserved synthetic message names, the closed set the core may generate.
// A binding as Replier to ReplierBindEvent is always rejected (spec.md §3).
const (
	NameReplierGoneAway     = "$.KBUS.Replier.GoneAway"
	NameReplierIgnored      = "$.KBUS.Replier.Ignored"
	NameReplierUnbound      = "$.KBUS.Replier.Unbound"
	NameReplierDisappeared  = "$.KBUS.Replier.Disappeared"
	NameErrorSending        = "$.KBUS.ErrorSending"
	NameReplierBindEvent    = "$.KBUS.ReplierBindEvent"
	NameUnbindEventsLost    = "$.KBUS.UnbindEventsLost"
)
