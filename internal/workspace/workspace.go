// Package workspace — набор файлов сессии редактора.
//
// Workspace иммутабелен: каждая операция возвращает новое значение,
// исходное не меняется. Так наблюдатели никогда не видят частично
// применённое изменение.
package workspace

import (
	"fmt"
	"strings"

	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/google/uuid"
)

type Workspace struct {
	files    []domain.File
	activeID string
}

// New копирует files; активным становится activeID либо первый файл.
func New(files []domain.File, activeID string) Workspace {
	cp := make([]domain.File, len(files))
	copy(cp, files)
	w := Workspace{files: cp}
	w.activeID = w.resolveActive(activeID)
	return w
}

func (w Workspace) Files() []domain.File {
	cp := make([]domain.File, len(w.files))
	copy(cp, w.files)
	return cp
}

func (w Workspace) Len() int { return len(w.files) }
func (w Workspace) Empty() bool { return len(w.files) == 0 }
func (w Workspace) ActiveID() string { return w.activeID }

func (w Workspace) Active() (domain.File, bool) {
	return w.Get(w.activeID)
}

func (w Workspace) Get(id string) (domain.File, bool) {
	if i := w.index(id); i >= 0 {
		return w.files[i], true
	}
	return domain.File{}, false
}

// Create добавляет файл и делает его активным.
func (w Workspace) Create(name string) (Workspace, domain.File, error) {
	name = strings.TrimSpace(name)
	lang, err := domain.ValidateFileName(name)
	if err != nil {
		return w, domain.File{}, fmt.Errorf("create %q: %w", name, err)
	}
	if w.nameTaken(name, "") {
		return w, domain.File{}, fmt.Errorf("create %q: %w", name, domain.ErrDuplicateFileName)
	}

	f := domain.File{
		ID:       uuid.NewString(),
		Name:     name,
		Language: lang,
		Content:  domain.DefaultContent(lang),
	}
	next := w.clone()
	next.files = append(next.files, f)
	next.activeID = f.ID
	return next, f, nil
}

// Rename меняет имя и язык; уникальность проверяется по новому имени.
func (w Workspace) Rename(id, newName string) (Workspace, domain.File, error) {
	newName = strings.TrimSpace(newName)
	i := w.index(id)
	if i < 0 {
		return w, domain.File{}, fmt.Errorf("rename %s: %w", id, domain.ErrFileNotFound)
	}
	lang, err := domain.ValidateFileName(newName)
	if err != nil {
		return w, domain.File{}, fmt.Errorf("rename %q: %w", newName, err)
	}
	if w.nameTaken(newName, id) {
		return w, domain.File{}, fmt.Errorf("rename %q: %w", newName, domain.ErrDuplicateFileName)
	}

	next := w.clone()
	next.files[i].Name = newName
	next.files[i].Language = lang
	return next, next.files[i], nil
}

// Delete не даёт удалить последний файл.
func (w Workspace) Delete(id string) (Workspace, error) {
	i := w.index(id)
	if i < 0 {
		return w, fmt.Errorf("delete %s: %w", id, domain.ErrFileNotFound)
	}
	if len(w.files) <= 1 {
		return w, fmt.Errorf("delete %s: %w", id, domain.ErrLastFile)
	}

	next := Workspace{files: make([]domain.File, 0, len(w.files)-1), activeID: w.activeID}
	next.files = append(next.files, w.files[:i]...)
	next.files = append(next.files, w.files[i+1:]...)
	if next.activeID == id {
		next.activeID = next.files[0].ID
	}
	return next, nil
}

func (w Workspace) UpdateContent(id, content string) (Workspace, error) {
	i := w.index(id)
	if i < 0 {
		return w, fmt.Errorf("update %s: %w", id, domain.ErrFileNotFound)
	}
	next := w.clone()
	next.files[i].Content = content
	return next, nil
}

func (w Workspace) SetActive(id string) (Workspace, error) {
	if w.index(id) < 0 {
		return w, fmt.Errorf("activate %s: %w", id, domain.ErrFileNotFound)
	}
	next := w.clone()
	next.activeID = id
	return next, nil
}

// --- remote apply ---
//
// Удалённые события применяются как есть, без повторной валидации имени:
// отправитель уже проверил их у себя.

// Insert добавляет пришедший файл, дубликаты по id игнорируются.
func (w Workspace) Insert(f domain.File) (Workspace, bool) {
	if f.ID == "" || w.index(f.ID) >= 0 {
		return w, false
	}
	next := w.clone()
	next.files = append(next.files, f)
	if next.activeID == "" {
		next.activeID = f.ID
	}
	return next, true
}

func (w Workspace) ApplyRename(id, newName, language string) (Workspace, bool) {
	i := w.index(id)
	if i < 0 {
		return w, false
	}
	next := w.clone()
	next.files[i].Name = newName
	if language != "" {
		next.files[i].Language = language
	}
	return next, true
}

// ApplyDelete, как и Delete, оставляет хотя бы один файл.
func (w Workspace) ApplyDelete(id string) (Workspace, bool) {
	next, err := w.Delete(id)
	return next, err == nil
}

func (w Workspace) ApplyContent(id, content string) (Workspace, bool) {
	next, err := w.UpdateContent(id, content)
	return next, err == nil
}

// --- helpers ---

func (w Workspace) clone() Workspace {
	return New(w.files, w.activeID)
}

func (w Workspace) index(id string) int {
	for i := range w.files {
		if w.files[i].ID == id {
			return i
		}
	}
	return -1
}

func (w Workspace) nameTaken(name, exceptID string) bool {
	for _, f := range w.files {
		if f.ID != exceptID && domain.SameName(f.Name, name) {
			return true
		}
	}
	return false
}

func (w Workspace) resolveActive(id string) string {
	if id != "" && w.index(id) >= 0 {
		return id
	}
	if len(w.files) > 0 {
		return w.files[0].ID
	}
	return ""
}
