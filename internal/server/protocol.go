package server

// Commands understood by the companion extension.
const (
	ActionOpen      = "open"       // {url} -> {ok, tabId}
	ActionNavigate  = "navigate"   // {tabId, url} -> {ok}
	ActionTabStatus = "tab-status" // {tabId} -> {ok}; ok=false if gone or inaccessible
	ActionClose     = "close"      // {tabIds}, no reply expected
)

// Events the extension sends unprompted.
const (
	EventHello      = "hello"       // {browser}
	EventTabRemoved = "tab.removed" // {tabId}
)
