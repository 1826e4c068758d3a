package mockprovider

import (
	"encoding/base64"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	Port        string        `mapstructure:"port"`
	FailureRate float64       `mapstructure:"failure_rate"`
	LatencyMin  time.Duration `mapstructure:"latency_min"`
	LatencyMax  time.Duration `mapstructure:"latency_max"`
}

// Simulator implements provider-shaped HTTP endpoints for three identities:
// a twilio-like SMS/MMS API, a sendgrid-like mail API and a generic one.
type Simulator struct {
	cfg    Config
	store  *Store
	logger *zap.Logger

	// injectable for deterministic tests
	randFloat func() float64
	sleep     func(time.Duration)
}

func NewSimulator(cfg Config, store *Store, logger *zap.Logger) *Simulator {
	return &Simulator{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		randFloat: rand.Float64,
		sleep:     time.Sleep,
	}
}

func (s *Simulator) RegisterRoutes(app *fiber.App) {
	app.Post("/2010-04-01/Accounts/:sid/Messages.json", s.twilioSend)
	app.Get("/2010-04-01/Accounts/:sid/Messages/:id.json", s.twilioStatus)

	app.Post("/v3/mail/send", s.sendgridSend)
	app.Get("/v3/messages/:id", s.sendgridStatus)

	app.Post("/v1/messages", s.genericSend)
	app.Get("/v1/messages/:id", s.genericStatus)
}

var simAccountSID = regexp.MustCompile(`^AC[a-zA-Z0-9]{32,}$`)

func (s *Simulator) twilioSend(c *fiber.Ctx) error {
	sid, token, ok := parseBasicAuth(c.Get("Authorization"))
	if !ok || !simAccountSID.MatchString(sid) || len(token) < 32 || sid != c.Params("sid") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"code":    20003,
			"message": "Authentication Error - invalid username",
			"status":  401,
		})
	}

	if c.FormValue("To") == "" || c.FormValue("From") == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    21604,
			"message": "A 'To' phone number is required.",
			"status":  400,
		})
	}

	s.simulateLatency()

	if s.shouldFail() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    21211,
			"message": "The 'To' number is not a valid phone number.",
			"status":  400,
		})
	}

	id := "SM" + randomHex()
	s.store.Put(SentMessage{ID: id, Identity: "twilio", SentAt: time.Now()})

	s.logger.Debug("twilio-like message accepted", zap.String("sid", id))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"sid":    id,
		"status": "queued",
	})
}

func (s *Simulator) twilioStatus(c *fiber.Ctx) error {
	status, ok := s.store.Status(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"code":    20404,
			"message": "The requested resource was not found",
			"status":  404,
		})
	}

	return c.JSON(fiber.Map{"sid": c.Params("id"), "status": status})
}

func (s *Simulator) sendgridSend(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	key, found := strings.CutPrefix(auth, "Bearer ")
	if !found || !strings.HasPrefix(key, "SG.") || len(key) < 20 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"errors": []fiber.Map{{"message": "The provided authorization grant is invalid, expired, or revoked"}},
		})
	}

	var payload struct {
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
	}
	if err := c.BodyParser(&payload); err != nil || len(payload.Personalizations) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": []fiber.Map{{"message": "The personalizations field is required"}},
		})
	}

	s.simulateLatency()

	if s.shouldFail() {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"errors": []fiber.Map{{"message": "Internal mail delivery error"}},
		})
	}

	id := "sg_" + randomHex()
	s.store.Put(SentMessage{ID: id, Identity: "sendgrid", SentAt: time.Now()})

	s.logger.Debug("sendgrid-like mail accepted", zap.String("messageID", id))

	c.Set("X-Message-Id", id)
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Simulator) sendgridStatus(c *fiber.Ctx) error {
	status, ok := s.store.Status(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"errors": []fiber.Map{{"message": "message not found"}},
		})
	}

	return c.JSON(fiber.Map{"msg_id": c.Params("id"), "status": status})
}

func (s *Simulator) genericSend(c *fiber.Ctx) error {
	var payload struct {
		Type string   `json:"type"`
		To   []string `json:"to"`
		From string   `json:"from"`
		Body string   `json:"body"`
	}
	if err := c.BodyParser(&payload); err != nil || len(payload.To) == 0 || payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required fields: to, from",
		})
	}

	s.simulateLatency()

	if s.shouldFail() {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "simulated provider failure",
		})
	}

	id := "msg_" + randomHex()
	s.store.Put(SentMessage{ID: id, Identity: "generic", SentAt: time.Now()})

	return c.JSON(fiber.Map{"message_id": id, "status": "sent"})
}

func (s *Simulator) genericStatus(c *fiber.Ctx) error {
	status, ok := s.store.Status(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
	}

	return c.JSON(fiber.Map{"message_id": c.Params("id"), "status": status})
}

func (s *Simulator) shouldFail() bool {
	return s.cfg.FailureRate > 0 && s.randFloat() < s.cfg.FailureRate
}

func (s *Simulator) simulateLatency() {
	if s.cfg.LatencyMax <= 0 {
		return
	}

	min := s.cfg.LatencyMin
	span := s.cfg.LatencyMax - min
	if span < 0 {
		span = 0
	}

	delay := min
	if span > 0 {
		delay += time.Duration(s.randFloat() * float64(span))
	}

	s.sleep(delay)
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func parseBasicAuth(header string) (user, pass string, ok bool) {
	raw, found := strings.CutPrefix(header, "Basic ")
	if !found {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", false
	}

	user, pass, ok = strings.Cut(string(decoded), ":")
	return user, pass, ok
}
