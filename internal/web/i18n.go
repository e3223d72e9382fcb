package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// LangCookie remembers the visitor's explicit language choice.
const LangCookie = "rp_lang"

// messages holds every UI string by key, per language.
var messages = map[language.Tag]map[string]string{
	language.English: {
		"nav.home":          "Home",
		"nav.projects":      "Projects",
		"nav.team":          "Team",
		"nav.announcements": "Announcements",
		"nav.calendar":      "Calendar",
		"nav.language":      "Español",

		"auth.signIn":         "Sign in",
		"auth.signOut":        "Sign out",
		"auth.adminDashboard": "Admin dashboard",
		"auth.administrator":  "Administrator",
		"auth.member":         "Member",
		"auth.connectedAs":    "Connected as",
		"auth.loading":        "Checking your session…",

		"home.title":              "Research Group",
		"home.subtitle":           "Science and technology from Arequipa",
		"home.description":        "We develop research projects with a multidisciplinary team.",
		"home.cta":                "Explore our projects",
		"home.stats.projects":     "Projects",
		"home.stats.members":      "Members",
		"home.stats.publications": "Publications",
		"home.featuredProjects":   "Featured projects",

		"team.title":         "Our team",
		"team.subtitle":      "The people behind our research.",
		"team.researchAreas": "Research areas",
		"team.projects":      "Projects",
		"team.notFound":      "Team member not found.",

		"projects.title":    "Projects",
		"projects.subtitle": "Research we are working on.",
		"projects.members":  "Team",
		"projects.images":   "Images",
		"projects.files":    "Files",
		"projects.notFound": "Project not found.",

		"announcements.title":    "Announcements",
		"announcements.subtitle": "News from the group.",
		"announcements.links":    "Links",

		"calendar.title":    "Calendar",
		"calendar.subtitle": "Upcoming events.",
		"calendar.empty":    "There are no upcoming events.",

		"status.active":    "Active",
		"status.completed": "Completed",
		"status.on-hold":   "On hold",
		"status.unknown":   "Unknown",
		"status.inactive":  "Inactive",

		"type.meeting":    "Meeting",
		"type.deadline":   "Deadline",
		"type.conference": "Conference",
		"type.other":      "Other",

		"admin.title":              "Administration",
		"admin.tab.overview":       "Overview",
		"admin.tab.team":           "Team",
		"admin.tab.projects":       "Projects",
		"admin.tab.announcements":  "Announcements",
		"admin.tab.events":         "Events",
		"admin.add":                "Add",
		"admin.edit":               "Edit",
		"admin.delete":             "Delete",
		"admin.save":               "Save",
		"admin.cancel":             "Cancel",
		"admin.search":             "Search",
		"admin.all":                "All",
		"admin.confirmDelete":      "Delete this record? This cannot be undone.",
		"admin.confirm":            "Yes, delete",
		"admin.quickActions":       "Quick actions",
		"admin.recentActivity":     "Recent activity",
		"activity.project":         "New project: %s",
		"activity.announcement":    "New announcement: %s",
		"admin.totalMembers":       "Team members",
		"admin.totalProjects":      "Projects",
		"admin.activeProjects":     "Active projects",
		"admin.totalAnnouncements": "Announcements",
		"admin.totalEvents":        "Events",
		"admin.upcomingEvents":     "Upcoming events",
		"admin.empty":              "Nothing here yet.",

		"notice.load_failed":   "Could not load data from the server. Showing an empty list.",
		"notice.detail_failed": "Could not load this page from the server. Please try again later.",
		"notice.created":       "Saved.",
		"notice.updated":       "Changes saved.",
		"notice.deleted":       "Deleted.",

		"error.validation_rejected": "Please check the form: %s",
		"error.transport_failure":   "The server could not be reached. Please try again.",
		"error.not_found":           "The record no longer exists.",
		"error.auth_expired":        "Your session has expired. Please sign in again.",
		"error.signin_failed":       "Sign-in failed. Please try again.",

		"field.name":          "Name",
		"field.role":          "Role",
		"field.bio":           "Biography",
		"field.avatarUrl":     "Photo URL",
		"field.researchAreas": "Research areas (comma separated)",
		"field.githubUrl":     "GitHub URL",
		"field.linkedinUrl":   "LinkedIn URL",
		"field.email":         "Email",
		"field.isActive":      "Active",
		"field.description":   "Description",
		"field.content":       "Content (Markdown)",
		"field.images":        "Image URLs (one per line)",
		"field.files":         "File URLs (one per line)",
		"field.teamMembers":   "Team members",
		"field.status":        "Status",
		"field.title":         "Title",
		"field.date":          "Date",
		"field.links":         "Links (one per line)",
		"field.time":          "Time",
		"field.location":      "Location",
		"field.type":          "Type",

		"footer.rights": "All rights reserved.",
	},
	language.Spanish: {
		"nav.home":          "Inicio",
		"nav.projects":      "Proyectos",
		"nav.team":          "Equipo",
		"nav.announcements": "Anuncios",
		"nav.calendar":      "Calendario",
		"nav.language":      "English",

		"auth.signIn":         "Iniciar sesión",
		"auth.signOut":        "Cerrar sesión",
		"auth.adminDashboard": "Panel de administración",
		"auth.administrator":  "Administrador",
		"auth.member":         "Miembro",
		"auth.connectedAs":    "Conectado como",
		"auth.loading":        "Verificando tu sesión…",

		"home.title":              "Grupo de Investigación",
		"home.subtitle":           "Ciencia y tecnología desde Arequipa",
		"home.description":        "Desarrollamos proyectos de investigación con un equipo multidisciplinario.",
		"home.cta":                "Explora nuestros proyectos",
		"home.stats.projects":     "Proyectos",
		"home.stats.members":      "Miembros",
		"home.stats.publications": "Publicaciones",
		"home.featuredProjects":   "Proyectos destacados",

		"team.title":         "Nuestro equipo",
		"team.subtitle":      "Las personas detrás de nuestra investigación.",
		"team.researchAreas": "Áreas de investigación",
		"team.projects":      "Proyectos",
		"team.notFound":      "Miembro no encontrado.",

		"projects.title":    "Proyectos",
		"projects.subtitle": "La investigación en la que trabajamos.",
		"projects.members":  "Equipo",
		"projects.images":   "Imágenes",
		"projects.files":    "Archivos",
		"projects.notFound": "Proyecto no encontrado.",

		"announcements.title":    "Anuncios",
		"announcements.subtitle": "Novedades del grupo.",
		"announcements.links":    "Enlaces",

		"calendar.title":    "Calendario",
		"calendar.subtitle": "Próximos eventos.",
		"calendar.empty":    "No hay eventos próximos.",

		"status.active":    "Activo",
		"status.completed": "Completado",
		"status.on-hold":   "En pausa",
		"status.unknown":   "Desconocido",
		"status.inactive":  "Inactivo",

		"type.meeting":    "Reunión",
		"type.deadline":   "Fecha límite",
		"type.conference": "Conferencia",
		"type.other":      "Otro",

		"admin.title":              "Administración",
		"admin.tab.overview":       "Resumen",
		"admin.tab.team":           "Equipo",
		"admin.tab.projects":       "Proyectos",
		"admin.tab.announcements":  "Anuncios",
		"admin.tab.events":         "Eventos",
		"admin.add":                "Agregar",
		"admin.edit":               "Editar",
		"admin.delete":             "Eliminar",
		"admin.save":               "Guardar",
		"admin.cancel":             "Cancelar",
		"admin.search":             "Buscar",
		"admin.all":                "Todos",
		"admin.confirmDelete":      "¿Eliminar este registro? No se puede deshacer.",
		"admin.confirm":            "Sí, eliminar",
		"admin.quickActions":       "Acciones rápidas",
		"admin.recentActivity":     "Actividad reciente",
		"activity.project":         "Nuevo proyecto: %s",
		"activity.announcement":    "Nuevo anuncio: %s",
		"admin.totalMembers":       "Miembros del equipo",
		"admin.totalProjects":      "Proyectos",
		"admin.activeProjects":     "Proyectos activos",
		"admin.totalAnnouncements": "Anuncios",
		"admin.totalEvents":        "Eventos",
		"admin.upcomingEvents":     "Próximos eventos",
		"admin.empty":              "Aún no hay nada aquí.",

		"notice.load_failed":   "No se pudieron cargar los datos del servidor. Se muestra una lista vacía.",
		"notice.detail_failed": "No se pudo cargar esta página desde el servidor. Inténtalo de nuevo más tarde.",
		"notice.created":       "Guardado.",
		"notice.updated":       "Cambios guardados.",
		"notice.deleted":       "Eliminado.",

		"error.validation_rejected": "Revisa el formulario: %s",
		"error.transport_failure":   "No se pudo contactar al servidor. Inténtalo de nuevo.",
		"error.not_found":           "El registro ya no existe.",
		"error.auth_expired":        "Tu sesión expiró. Inicia sesión de nuevo.",
		"error.signin_failed":       "No se pudo iniciar sesión. Inténtalo de nuevo.",

		"field.name":          "Nombre",
		"field.role":          "Cargo",
		"field.bio":           "Biografía",
		"field.avatarUrl":     "URL de la foto",
		"field.researchAreas": "Áreas de investigación (separadas por comas)",
		"field.githubUrl":     "URL de GitHub",
		"field.linkedinUrl":   "URL de LinkedIn",
		"field.email":         "Correo",
		"field.isActive":      "Activo",
		"field.description":   "Descripción",
		"field.content":       "Contenido (Markdown)",
		"field.images":        "URLs de imágenes (una por línea)",
		"field.files":         "URLs de archivos (una por línea)",
		"field.teamMembers":   "Miembros del equipo",
		"field.status":        "Estado",
		"field.title":         "Título",
		"field.date":          "Fecha",
		"field.links":         "Enlaces (uno por línea)",
		"field.time":          "Hora",
		"field.location":      "Lugar",
		"field.type":          "Tipo",

		"footer.rights": "Todos los derechos reservados.",
	},
}

// I18n resolves the visitor's language and formats messages for it.
type I18n struct {
	matcher  language.Matcher
	fallback language.Tag
	catalog  catalog.Catalog
}

// NewI18n builds the catalog for supported, which must be a subset of en and es.
// defaultLang is used when nothing else matches.
func NewI18n(defaultLang string, supported []string) *I18n {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			_ = b.SetString(tag, key, msg)
		}
	}

	fallback := language.Make(defaultLang)
	tags := []language.Tag{fallback}
	for _, s := range supported {
		if t := language.Make(s); t != fallback {
			tags = append(tags, t)
		}
	}
	return &I18n{matcher: language.NewMatcher(tags), fallback: fallback, catalog: b}
}

// Localizer formats messages in one language. Templates call it as {{.L.T "key"}}.
type Localizer struct {
	Lang    string
	printer *message.Printer
}

// T returns the message for key formatted with args.
func (l Localizer) T(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// For returns the localizer of tag.
func (i *I18n) For(tag language.Tag) Localizer {
	base, _ := tag.Base()
	return Localizer{
		Lang:    base.String(),
		printer: message.NewPrinter(language.Make(base.String()), message.Catalog(i.catalog)),
	}
}

// Negotiate picks the language from the LangCookie, then Accept-Language.
func (i *I18n) Negotiate(c *gin.Context) Localizer {
	cookie, _ := c.Cookie(LangCookie)
	tag, _ := language.MatchStrings(i.matcher, cookie, c.GetHeader("Accept-Language"))
	return i.For(tag)
}

// Supports reports whether code names a configured language.
func (i *I18n) Supports(code string) (language.Tag, bool) {
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, false
	}
	_, _, conf := i.matcher.Match(tag)
	return tag, conf == language.Exact
}

// setLanguage handles GET /lang/:code and sends the visitor back where they were.
func (h *Handler) setLanguage(c *gin.Context) {
	code := c.Param("code")
	if _, ok := h.i18n.Supports(code); ok {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(LangCookie, code, 365*24*3600, "/", "", h.secureCookies, false)
	}
	c.Redirect(http.StatusSeeOther, safeReturnPath(c.Query("return")))
}
