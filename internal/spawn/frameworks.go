package spawn

import "fmt"

// Well-known dev-server defaults per framework. Unknown frameworks get
// no hint (0) and a generic npm/uvicorn-style command.
var frameworkPorts = map[string]int{
	"vite":    5173,
	"next":    3000,
	"react":   3000,
	"angular": 4200,
	"svelte":  5173,
	"express": 3001,
	"fastapi": 8000,
	"django":  8000,
	"flask":   5000,
}

// DefaultPort returns the conventional dev-server port for a framework,
// or 0 when the framework is unknown.
func DefaultPort(framework string) int {
	return frameworkPorts[framework]
}

func devCommand(framework string, port int) string {
	switch framework {
	case "fastapi":
		return fmt.Sprintf("uvicorn main:app --reload --port %d", port)
	case "django":
		return fmt.Sprintf("python manage.py runserver 127.0.0.1:%d", port)
	case "flask":
		return fmt.Sprintf("flask run --port %d", port)
	default:
		return fmt.Sprintf("npm run dev -- --port %d", port)
	}
}
