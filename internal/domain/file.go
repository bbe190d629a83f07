package domain

import (
	"path"
	"strings"
)

type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// extension -> язык редактора
var languages = map[string]string{
	".js":   "javascript",
	".ts":   "typescript",
	".py":   "python",
	".html": "html",
	".css":  "css",
	".json": "json",
	".java": "java",
	".cpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
}

// LanguageFor возвращает язык по расширению имени файла.
func LanguageFor(name string) (string, bool) {
	lang, ok := languages[strings.ToLower(path.Ext(name))]
	return lang, ok
}

// SupportedExtensions — отсортированный список для сообщений об ошибках.
func SupportedExtensions() []string {
	return []string{".cpp", ".cs", ".css", ".html", ".java", ".js", ".json", ".php", ".py", ".ts"}
}

// ValidateFileName проверяет имя и возвращает язык.
func ValidateFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidFileName
	}
	lang, ok := LanguageFor(name)
	if !ok {
		return "", ErrUnsupportedExtension
	}
	return lang, nil
}

// DefaultContent: json-файлы стартуют с пустого объекта.
func DefaultContent(language string) string {
	if language == "json" {
		return "{}"
	}
	return ""
}

func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
