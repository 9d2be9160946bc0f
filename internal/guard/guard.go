// Package guard implementa el chequeo de sesion que corre el front-end
// antes de renderizar cualquier vista protegida.
package guard

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Decision indica si la navegacion continua o se redirige.
type Decision struct {
	Continue   bool
	RedirectTo string
}

func decideContinue() Decision {
	return Decision{Continue: true}
}

func redirectTo(target string) Decision {
	return Decision{RedirectTo: target}
}

// Guard valida tokens contra el endpoint remoto /verify-token.
// Cada evaluacion hace una llamada en vivo, sin cache local: un token
// revocado o expirado deja de pasar en la siguiente navegacion.
type Guard struct {
	baseURL       string
	loginPath     string
	dashboardPath string
	publicPaths   map[string]bool
	client        *http.Client
}

// New construye un Guard apuntando al servicio de autenticacion.
// publicPaths no necesita incluir loginPath; se trata como publico.
func New(baseURL, loginPath, dashboardPath string, publicPaths []string) *Guard {
	public := make(map[string]bool, len(publicPaths)+1)
	for _, p := range publicPaths {
		public[p] = true
	}
	public[loginPath] = true
	return &Guard{
		baseURL:       strings.TrimRight(baseURL, "/"),
		loginPath:     loginPath,
		dashboardPath: dashboardPath,
		publicPaths:   public,
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Evaluate aplica las reglas en orden:
//  1. ruta publica -> Continue, salvo la pagina de login con token vigente,
//     que redirige al dashboard;
//  2. ruta protegida -> validacion remota; token invalido redirige al login.
//
// Timeout o error de red cuentan como token invalido (fail closed).
func (g *Guard) Evaluate(ctx context.Context, path, token string) Decision {
	if g.publicPaths[path] {
		if path == g.loginPath && token != "" && g.validateRemote(ctx, token) {
			return redirectTo(g.dashboardPath)
		}
		return decideContinue()
	}

	if token == "" || !g.validateRemote(ctx, token) {
		return redirectTo(g.loginPath)
	}
	return decideContinue()
}

func (g *Guard) validateRemote(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/verify-token", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
