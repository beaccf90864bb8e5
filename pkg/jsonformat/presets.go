package jsonformat

import "sort"

const DefaultPreset = "combined"

var (
	statusField   = TokenTemplate{Value: ":status", Type: Named("integer")}
	lengthField   = TokenTemplate{Value: ":res[content-length]", Type: Named("integer")}
	responseField = TokenTemplate{Value: ":response-time", Type: Named("float")}
)

func presets() map[string]any {
	return map[string]any{
		"tiny": MappedFormat{
			{Key: "method", Template: T(":method")},
			{Key: "url", Template: T(":url")},
			{Key: "status", Template: statusField},
			{Key: "content-length", Template: lengthField},
			{Key: "response-time", Template: responseField},
		},
		"short": MappedFormat{
			{Key: "remote-addr", Template: T(":remote-addr")},
			{Key: "remote-user", Template: T(":remote-user")},
			{Key: "request", Template: T(":method :url HTTP/:http-version")},
			{Key: "status", Template: statusField},
			{Key: "content-length", Template: lengthField},
			{Key: "response-time", Template: responseField},
		},
		"common": MappedFormat{
			{Key: "remote-addr", Template: T(":remote-addr")},
			{Key: "remote-user", Template: T(":remote-user")},
			{Key: "date", Template: T(":date[clf]")},
			{Key: "request", Template: T(":method :url HTTP/:http-version")},
			{Key: "status", Template: statusField},
			{Key: "content-length", Template: lengthField},
		},
		"combined": MappedFormat{
			{Key: "remote-addr", Template: T(":remote-addr")},
			{Key: "remote-user", Template: T(":remote-user")},
			{Key: "date", Template: T(":date[clf]")},
			{Key: "request", Template: T(":method :url HTTP/:http-version")},
			{Key: "status", Template: statusField},
			{Key: "content-length", Template: lengthField},
			{Key: "referrer", Template: T(":referrer")},
			{Key: "user-agent", Template: T(":user-agent")},
		},
		"dev": ":method :url :status :response-time ms - :res[content-length]",
	}
}

// Preset returns a named built-in format. The returned value is a fresh copy
// and can be passed to Compile directly.
func Preset(name string) (any, bool) {
	p, ok := presets()[name]
	return p, ok
}

func PresetNames() []string {
	names := make([]string, 0, 5)
	for k := range presets() {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
