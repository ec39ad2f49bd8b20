package notifications

import (
	"bytes"
	"html/template"

	"autodealers-backend/internal/leads"
)

const newLeadTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hola,</p>
  <p>Ha llegado un nuevo lead a tu concesionario:</p>
  <ul>
    <li>Nombre: {{.Name}}</li>
    {{if .Email}}<li>Email: {{.Email}}</li>{{end}}
    {{if .Phone}}<li>Telefono: {{.Phone}}</li>{{end}}
    <li>Canal: {{.SourceLabel}}</li>
    {{if .VehicleID}}<li>Vehiculo de interes: {{.VehicleID}}</li>{{end}}
    <li>Numero de lead: {{.LeadID}}</li>
  </ul>
  <p>Responde pronto; los primeros minutos cuentan.</p>
</body>
</html>`

const hotLeadTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hola,</p>
  <p>El lead <strong>{{.Name}}</strong> alcanzo una puntuacion de <strong>{{.Score}}</strong>.</p>
  <ul>
    <li>Canal: {{.SourceLabel}}</li>
    <li>Estado: {{.Status}}</li>
    <li>Numero de lead: {{.LeadID}}</li>
  </ul>
  <p>Contacta a este cliente hoy.</p>
</body>
</html>`

var (
	newLeadTmpl = template.Must(template.New("new_lead").Parse(newLeadTemplate))
	hotLeadTmpl = template.Must(template.New("hot_lead").Parse(hotLeadTemplate))
)

type leadEmailData struct {
	Name        string
	Email       string
	Phone       string
	SourceLabel string
	Status      string
	VehicleID   string
	LeadID      string
	Score       int
}

func buildNewLeadHTML(lead leads.Lead) (string, error) {
	return renderLeadTemplate(newLeadTmpl, lead, 0)
}

func buildHotLeadHTML(lead leads.Lead, score int) (string, error) {
	return renderLeadTemplate(hotLeadTmpl, lead, score)
}

func renderLeadTemplate(tmpl *template.Template, lead leads.Lead, score int) (string, error) {
	data := leadEmailData{
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		SourceLabel: sourceLabel(lead.Source),
		Status:      lead.Status,
		VehicleID:   lead.VehicleID,
		LeadID:      lead.ID,
		Score:       score,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sourceLabel(value string) string {
	switch value {
	case leads.SourceWeb:
		return "Sitio web"
	case leads.SourceWhatsApp:
		return "WhatsApp"
	case leads.SourceFacebook:
		return "Facebook"
	case leads.SourceInstagram:
		return "Instagram"
	case leads.SourceEmail:
		return "Email"
	case leads.SourcePhone:
		return "Llamada"
	case leads.SourceSMS:
		return "SMS"
	default:
		return value
	}
}
