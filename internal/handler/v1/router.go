package v1

import (
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups every v1 handler.
type Handlers struct {
	Auth          *AuthHandler
	Doctors       *DoctorHandler
	Patients      *PatientHandler
	Appointments  *AppointmentHandler
	Payments      *PaymentHandler
	Meetings      *MeetingHandler
	Reviews       *ReviewHandler
	Documents     *DocumentHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
}

// RegisterRoutes mounts the v1 API on api. authLimit guards the credential
// endpoints on top of the global limit.
func RegisterRoutes(api *gin.RouterGroup, h *Handlers, tokens middleware.TokenValidator, authLimit gin.HandlerFunc) {
	authn := middleware.Authenticate(tokens)

	public := api.Group("")
	{
		creds := public.Group("/auth", authLimit)
		creds.POST("/register/patient", h.Auth.RegisterPatient)
		creds.POST("/register/doctor", h.Auth.RegisterDoctor)
		creds.POST("/login", h.Auth.Login)
		creds.POST("/refresh", h.Auth.Refresh)

		doctors := public.Group("/doctors", middleware.OptionalAuthenticate(tokens))
		doctors.GET("", h.Doctors.Search)
		doctors.GET("/:id", h.Doctors.Get)
		doctors.GET("/:id/slots", h.Doctors.Slots)
		doctors.GET("/:id/reviews", h.Reviews.ListForDoctor)

		webhooks := public.Group("/webhooks")
		webhooks.POST("/payments", h.Payments.Webhook)
		webhooks.POST("/meetings", h.Meetings.Webhook)
	}

	private := api.Group("", authn)
	{
		private.GET("/me", h.Auth.GetMe)
		private.PATCH("/me", h.Auth.UpdateMe)

		account := private.Group("/auth", authLimit)
		account.POST("/password", h.Auth.ChangePassword)
		account.POST("/mfa/enroll", h.Auth.EnrollMFA)
		account.POST("/mfa/enable", h.Auth.EnableMFA)
		account.POST("/mfa/disable", h.Auth.DisableMFA)

		patients := private.Group("/patients")
		patients.GET("/me", middleware.RequireRole(domain.RolePatient), h.Patients.GetMe)
		patients.PUT("/me", middleware.RequireRole(domain.RolePatient), h.Patients.UpdateMe)
		patients.GET("/:id", middleware.RequireRole(domain.RoleDoctor, domain.RoleAdmin), h.Patients.Get)

		me := private.Group("/doctors/me", middleware.RequireRole(domain.RoleDoctor))
		me.PUT("/profile", h.Doctors.UpdateProfile)
		me.PUT("/availability", h.Doctors.SetAvailability)

		appts := private.Group("/appointments")
		appts.POST("", middleware.RequireRole(domain.RolePatient), h.Appointments.Book)
		appts.GET("", h.Appointments.List)
		appts.GET("/:id", h.Appointments.Get)
		appts.POST("/:id/accept", middleware.RequireRole(domain.RoleDoctor), h.Appointments.Accept)
		appts.POST("/:id/reject", middleware.RequireRole(domain.RoleDoctor), h.Appointments.Reject)
		appts.POST("/:id/cancel", h.Appointments.Cancel)
		appts.POST("/:id/complete", middleware.RequireRole(domain.RoleDoctor, domain.RoleAdmin), h.Appointments.Complete)
		appts.POST("/:id/payment", middleware.RequireRole(domain.RolePatient), h.Payments.Create)
		appts.GET("/:id/payment", h.Payments.Get)
		appts.GET("/:id/meeting", h.Appointments.MeetingLink)
		appts.POST("/:id/review", middleware.RequireRole(domain.RolePatient), h.Reviews.Create)

		docs := private.Group("/documents")
		docs.POST("", h.Documents.Upload)
		docs.GET("", h.Documents.List)
		docs.GET("/:id", h.Documents.Get)
		docs.GET("/:id/download", h.Documents.Download)
		docs.DELETE("/:id", h.Documents.Delete)

		notes := private.Group("/notifications")
		notes.GET("", h.Notifications.List)
		notes.POST("/read-all", h.Notifications.MarkAllRead)
		notes.POST("/:id/read", h.Notifications.MarkRead)
	}

	admin := api.Group("/admin", authn, middleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.POST("/users/:id/activate", h.Admin.Activate)
		admin.POST("/users/:id/deactivate", h.Admin.Deactivate)
		admin.GET("/doctors/pending", h.Doctors.ListPending)
		admin.POST("/doctors/:id/verify", h.Doctors.Verify)
		admin.POST("/doctors/:id/unverify", h.Doctors.Unverify)
		admin.DELETE("/reviews/:id", h.Reviews.Delete)
		admin.GET("/stats", h.Admin.Stats)
	}
}
