// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"html/template"
	"net/http"
	"sync"

	"github.com/dalemusser/stratapulse/internal/app/system/htmlsanitize"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// DefaultSiteName is shown when no event title is configured.
const DefaultSiteName = "Technical Job Fair"

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", theme),
//	}
type BaseVM struct {
	// Site chrome (from config)
	SiteName   string
	FooterHTML template.HTML

	// Visitor preferences
	Theme string // light or dark

	// Page context
	Title       string
	CurrentPath string

	// Security
	CSRFToken string // CSRF token for forms and fetch headers
}

// Site is the operator-configured page chrome.
type Site struct {
	Name   string
	Footer string // plain text or a small HTML fragment
}

var (
	siteMu sync.RWMutex
	site   = Site{Name: DefaultSiteName}
)

// Init sets the page chrome. Call this once at startup from bootstrap.
func Init(s Site) {
	if s.Name == "" {
		s.Name = DefaultSiteName
	}
	siteMu.Lock()
	site = s
	siteMu.Unlock()
}

// NewBaseVM creates a fully populated BaseVM for a page.
func NewBaseVM(r *http.Request, title, theme string) BaseVM {
	vm := New(r)
	vm.Title = title
	vm.Theme = theme
	return vm
}

// New creates a BaseVM with the configured site chrome.
func New(r *http.Request) BaseVM {
	siteMu.RLock()
	s := site
	siteMu.RUnlock()

	return BaseVM{
		SiteName:    s.Name,
		FooterHTML:  htmlsanitize.Footer(s.Footer),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}
}
