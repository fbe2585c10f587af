package config

import "strings"

// LanguageConfig describes one selectable voice language.
type LanguageConfig struct {
	Tag   string `toml:"tag"`   // BCP-47 regional tag, e.g. ta-IN
	Name  string `toml:"name"`  // display name
	Voice string `toml:"voice"` // synthesizer voice; empty uses the base language code
}

// DefaultLanguages returns the regional languages offered by the client.
func DefaultLanguages() []LanguageConfig {
	return []LanguageConfig{
		{Tag: "en-IN", Name: "English", Voice: "en"},
		{Tag: "hi-IN", Name: "हिन्दी (Hindi)", Voice: "hi"},
		{Tag: "ta-IN", Name: "தமிழ் (Tamil)", Voice: "ta"},
		{Tag: "te-IN", Name: "తెలుగు (Telugu)", Voice: "te"},
		{Tag: "kn-IN", Name: "ಕನ್ನಡ (Kannada)", Voice: "kn"},
		{Tag: "ml-IN", Name: "മലയാളം (Malayalam)", Voice: "ml"},
		{Tag: "bn-IN", Name: "বাংলা (Bengali)", Voice: "bn"},
		{Tag: "mr-IN", Name: "मराठी (Marathi)", Voice: "mr"},
		{Tag: "gu-IN", Name: "ગુજરાતી (Gujarati)", Voice: "gu"},
		{Tag: "pa-IN", Name: "ਪੰਜਾਬੀ (Punjabi)", Voice: "pa"},
		{Tag: "or-IN", Name: "ଓଡ଼ିଆ (Odia)", Voice: "or"},
		{Tag: "as-IN", Name: "অসমীয়া (Assamese)", Voice: "as"},
		{Tag: "ur-IN", Name: "اردو (Urdu)", Voice: "ur"},
	}
}

// Voices maps language tags to synthesizer voice names.
func (c *Config) Voices() map[string]string {
	out := make(map[string]string, len(c.Languages))
	for _, l := range c.Languages {
		if strings.TrimSpace(l.Tag) == "" || strings.TrimSpace(l.Voice) == "" {
			continue
		}
		out[strings.ToLower(l.Tag)] = l.Voice
	}
	return out
}

// FindLanguage returns the configured entry for tag (case-insensitive).
func (c *Config) FindLanguage(tag string) (LanguageConfig, bool) {
	for _, l := range c.Languages {
		if strings.EqualFold(l.Tag, tag) {
			return l, true
		}
	}
	return LanguageConfig{}, false
}
