package commands

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed all:templates
var templateFS embed.FS

const projectTemplate = "templates/project"

// copyTemplate copies the embedded project template to the target path.
// It handles special file renames (e.g., "gitignore" -> ".gitignore").
func copyTemplate(targetDir string, force bool) error {
	return fs.WalkDir(templateFS, projectTemplate, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(projectTemplate, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		targetPath := filepath.Join(targetDir, renameSpecialFiles(relPath))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		// Skip existing files unless forced.
		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil
			}
		}

		content, err := templateFS.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(targetPath, content, 0600)
	})
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
// Dotfiles are stored without the dot so the embed does not skip them.
func renameSpecialFiles(path string) string {
	base := filepath.Base(path)
	dir := filepath.Dir(path)

	switch base {
	case "gitignore":
		return filepath.Join(dir, ".gitignore")
	default:
		return path
	}
}

// listTemplateFiles returns all files in the project template for
// display purposes.
func listTemplateFiles() ([]string, error) {
	var files []string

	err := fs.WalkDir(templateFS, projectTemplate, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relPath, _ := filepath.Rel(projectTemplate, path)
			files = append(files, renameSpecialFiles(relPath))
		}
		return nil
	})

	return files, err
}

// templateFile reads one file of the project template.
func templateFile(name string) ([]byte, error) {
	return templateFS.ReadFile(filepath.Join(projectTemplate, name))
}
