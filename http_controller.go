package gateway

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-print"
)

// Controller shapes the HTTP surface around the identity provider: validate,
// call the provider, normalize known failures, forward raw responses.
type Controller struct {
	Debug          bool
	Logger         Logger
	Provider       IdentityProvider
	Metrics        *Collector
	VerifyRedirect string
}

type ControllerOption func(*Controller) *Controller

func WithLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithMetrics(m *Collector) ControllerOption {
	return func(c *Controller) *Controller {
		c.Metrics = m
		return c
	}
}

func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// WithVerifyRedirect sets the fixed post verification redirect target.
func WithVerifyRedirect(target string) ControllerOption {
	return func(c *Controller) *Controller {
		if target != "" {
			c.VerifyRedirect = target
		}
		return c
	}
}

func NewController(provider IdentityProvider, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:         defLogger{},
		Provider:       provider,
		VerifyRedirect: "/api/v1",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Provider == nil {
		panic("Missing IdentityProvider in gateway controller...")
	}

	return c
}

// RegisterRoutes mounts the credential endpoints plus the provider catch-all
// and the plain text greeting. Specific auth routes must register before the
// wildcard so they win dispatch.
func RegisterRoutes(app fiber.Router, controller *Controller) {
	app.Post("/auth/register", controller.Register)
	app.Post("/auth/login", controller.Login)
	app.Get("/auth/verify-email", controller.VerifyEmail)
	app.Get("/auth/session", controller.Session)
	app.All("/auth/*", adaptor.HTTPHandler(controller.Provider.PassthroughHandler()))

	app.Get("/v1", controller.Greeting)
}

// RegisterRequest payload
type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Username string `json:"username" form:"username"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(6, 64),
		),
		validation.Field(
			&r.Username,
			validation.Required,
			validation.Length(3, 64),
		),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(6, 64),
		),
	)
}

// VerifyEmailRequest carries the query string token.
type VerifyEmailRequest struct {
	Token string `json:"token" query:"token"`
}

// Validate will run validation rules
func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Token,
			validation.Required,
			validation.By(ValidateSignedToken),
		),
	)
}

// ValidateSignedToken checks the value is structurally a signed compact
// token. Signature and expiry checks belong to the provider; this only keeps
// garbage from reaching it.
func ValidateSignedToken(value any) error {
	s, _ := value.(string)
	if s == "" {
		return fmt.Errorf("must be a signed token")
	}
	if _, _, err := jwt.NewParser().ParseUnverified(s, jwt.MapClaims{}); err != nil {
		return fmt.Errorf("must be a valid signed token")
	}
	return nil
}

func (a *Controller) Register(c *fiber.Ctx) error {
	payload := new(RegisterRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload: ", "error", err)
		return a.respondMalformedBody(c)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(c, err)
	}

	if a.Debug {
		a.Logger.Debug("register payload: %s", print.MaybePrettyJSON(payload))
	}

	// Username maps to the provider's display name field.
	res, err := a.Provider.SignUp(c.UserContext(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		return a.respondProviderError(c, "register", err)
	}

	return sendRawResponse(c, res)
}

func (a *Controller) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return a.respondMalformedBody(c)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(c, err)
	}

	res, err := a.Provider.SignIn(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.respondProviderError(c, "login", err)
	}

	return sendRawResponse(c, res)
}

func (a *Controller) VerifyEmail(c *fiber.Ctx) error {
	payload := VerifyEmailRequest{Token: c.Query("token")}

	if err := payload.Validate(); err != nil {
		return a.respondValidationError(c, err)
	}

	res, err := a.Provider.VerifyEmail(c.UserContext(), payload.Token, a.VerifyRedirect)
	if err != nil {
		return a.respondProviderError(c, "verify-email", err)
	}

	return sendRawResponse(c, res)
}

// Session answers introspection requests with the structured pair instead of
// a raw provider response. Anonymous callers get a JSON null with 200, never
// an error.
func (a *Controller) Session(c *fiber.Ctx) error {
	data, err := a.Provider.GetSession(c.UserContext(), RequestHeaders(c))
	if err != nil {
		return a.respondProviderError(c, "session", err)
	}

	if data == nil {
		return c.Status(fiber.StatusOK).JSON(nil)
	}

	return c.Status(fiber.StatusOK).JSON(data)
}

func (a *Controller) Greeting(c *fiber.Ctx) error {
	return c.SendString("Hello from the gateway!")
}

func (a *Controller) respondMalformedBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Error parsing body",
	})
}

func (a *Controller) respondValidationError(c *fiber.Ctx, err error) error {
	a.Logger.Info("payload validation failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Error validating payload",
		"errors":  FormatValidationErrorToMap(err),
	})
}

// respondProviderError applies the single normalization rule: provider domain
// errors answer with their carried status and message only, anything else is
// returned untouched so the framework's fault boundary answers with a generic
// 5xx.
func (a *Controller) respondProviderError(c *fiber.Ctx, endpoint string, err error) error {
	rich, ok := AsProviderError(err)
	if !ok {
		return err
	}

	a.Metrics.RecordProviderError(endpoint)
	a.Logger.Info("provider error",
		"endpoint", endpoint,
		"text_code", rich.TextCode,
		"status", rich.Code,
	)

	status := int(rich.Code)
	if status < fiber.StatusBadRequest {
		status = fiber.StatusBadRequest
	}

	return c.Status(status).JSON(fiber.Map{
		"message": rich.Message,
	})
}

// sendRawResponse forwards a provider response verbatim. Headers are copied
// value by value rather than re-derived from the body, otherwise session
// cookie propagation breaks.
func sendRawResponse(c *fiber.Ctx, res *RawResponse) error {
	if res == nil {
		return fiber.ErrInternalServerError
	}

	for key, values := range res.Header {
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}

	c.Status(res.Status)

	if len(res.Body) == 0 {
		return nil
	}

	return c.Send(res.Body)
}
