package convert

import (
	"strings"
)

// defaultTargets maps a normalized source extension to the ordered list of
// output extensions produced when no explicit target is requested.
var defaultTargets = map[string][]string{
	".doc":  {"pdf"},
	".rtf":  {"pdf"},
	".odt":  {"pdf"},
	".xls":  {"xlsx"},
	".xlsm": {"xlsx"},
	".ppt":  {"pptx"},
	".hwp":  {"pdf"},
	".mht":  {"html"},
}

// TargetsFor returns the default output extensions for a source extension.
// Unknown extensions fall back to a single "pdf" target.
func TargetsFor(ext string) []string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if targets, ok := defaultTargets[strings.ToLower(ext)]; ok {
		return targets
	}
	return []string{"pdf"}
}

// IsMappedExtension reports whether the extension has a default mapping
// entry, i.e. whether directory mode picks the file up.
func IsMappedExtension(ext string) bool {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	_, ok := defaultTargets[strings.ToLower(ext)]
	return ok
}

// SupportedFormats returns a copy of the default mapping table, keyed by
// input extension.
func SupportedFormats() map[string][]string {
	out := make(map[string][]string, len(defaultTargets))
	for ext, targets := range defaultTargets {
		out[ext] = append([]string(nil), targets...)
	}
	return out
}

// documentLikeTargets are the extensions AbiWord is worth trying for when an
// explicit target has no policy entry.
var documentLikeTargets = map[string]bool{
	"pdf":  true,
	"docx": true,
	"rtf":  true,
	"odt":  true,
	"txt":  true,
}
