package web

import (
	"SpeechStudio/internal/service/presets"
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed page.html
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

// Пункты боковой навигации. Рабочий только "Text to Speech".
var navItems = []navItem{
	{Label: "Home"},
	{Label: "Voices"},
	{Label: "Text to Speech", Active: true},
	{Label: "Voice Changer"},
	{Label: "Sound Effects"},
	{Label: "Voice Isolator"},
	{Label: "Studio"},
	{Label: "Music"},
	{Label: "Developers"},
}

type navItem struct {
	Label  string
	Active bool
}

type pageData struct {
	Nav     []navItem
	Catalog catalogView
	Presets []presets.Preset
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{Nav: navItems, Catalog: s.catalog(), Presets: presets.List()}
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Errorw("Failed to render page", "error", err)
	}
}
