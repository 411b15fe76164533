package presets

// Preset быстрая заготовка текста для поля ввода.
type Preset struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

var list = []Preset{
	{ID: "story", Label: "Narrate a story", Text: "Once upon a time, in a land far away, there lived a brave adventurer who..."},
	{ID: "joke", Label: "Tell a silly joke", Text: "Why don't scientists trust atoms? Because they make up everything!"},
	{ID: "ad", Label: "Record an advertisement", Text: "Introducing the revolutionary new product that will change your life forever..."},
	{ID: "languages", Label: "Speak in different languages", Text: "Hello! Bonjour! Hola! Guten Tag! こんにちは! 你好!"},
	{ID: "movie", Label: "Direct a dramatic movie scene", Text: "In a world where silence reigns supreme, one voice will shatter the darkness..."},
	{ID: "character", Label: "Hear from a video game character", Text: "Greetings, warrior! Your quest awaits in the mystical realm of..."},
	{ID: "podcast", Label: "Introduce your podcast", Text: "Welcome to another episode of TechTalk, where we explore the latest innovations..."},
	{ID: "meditation", Label: "Guide a meditation class", Text: "Take a deep breath and let your mind settle into a place of peace and tranquility..."},
}

// List возвращает заготовки в порядке отображения.
func List() []Preset { return append([]Preset(nil), list...) }

// Lookup ищет заготовку по ID.
func Lookup(id string) (Preset, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// Apply возвращает новый текст поля ввода: текст заготовки целиком заменяет текущий,
// для неизвестного ID поле очищается.
func Apply(_ string, id string) string {
	p, _ := Lookup(id)
	return p.Text
}
