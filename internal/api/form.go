package api

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

// messageForm is the body of a send request. Clients post multipart
// when attaching files and JSON otherwise.
type messageForm struct {
	Content        string `json:"content" form:"content"`
	ReplyTo        string `json:"replyTo" form:"replyTo"`
	ConversationID string `json:"conversationId" form:"conversationId"`
	Lat            coord  `json:"lat" form:"lat"`
	Lng            coord  `json:"lng" form:"lng"`
	Title          string `json:"title" form:"title"`

	files []*multipart.FileHeader
}

// coord accepts a JSON number or a numeric string.
type coord string

func (c *coord) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	*c = coord(strings.Trim(string(b), `"`))
	return nil
}

func parseMessageForm(c *fiber.Ctx) (*messageForm, error) {
	f := &messageForm{}
	if len(c.Body()) == 0 {
		return f, nil
	}
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, apperr.Validation("malformed multipart body")
		}
		first := func(k string) string {
			if v := form.Value[k]; len(v) > 0 {
				return v[0]
			}
			return ""
		}
		f.Content = first("content")
		f.ReplyTo = first("replyTo")
		f.ConversationID = first("conversationId")
		f.Lat = coord(first("lat"))
		f.Lng = coord(first("lng"))
		f.Title = first("title")
		f.files = form.File["files"]
		return f, nil
	}
	if err := c.BodyParser(f); err != nil {
		return nil, apperr.Validation("invalid body")
	}
	return f, nil
}

// location is set only when both coordinates are present.
func (f *messageForm) location() (*models.GeoPoint, error) {
	if f.Lat == "" && f.Lng == "" {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(string(f.Lat), 64)
	lng, err2 := strconv.ParseFloat(string(f.Lng), 64)
	if err1 != nil || err2 != nil {
		return nil, apperr.Validation("lat and lng must both be numbers")
	}
	loc := &models.GeoPoint{Lat: lat, Lng: lng}
	if !loc.Valid() {
		return nil, apperr.Validation("coordinates out of range")
	}
	return loc, nil
}
