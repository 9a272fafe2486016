package notify

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/reginor/backend-reginor/internal/events"
)

type emailTemplate struct {
	subject string
	body    *template.Template
}

var emailTemplates = map[string]emailTemplate{
	events.TopicOrderCreated: {
		subject: "Vi har mottatt din påmelding",
		body: template.Must(template.New("order.created").Parse(
			"Hei!\n\nVi har registrert din påmelding (ordre {{.OrderID}}).\n" +
				"Totalbeløp: {{.Total}}.\n\nFullfør betalingen for å sikre plassen din.\n")),
	},
	events.TopicOrderPaid: {
		subject: "Betaling mottatt – plassen er din",
		body: template.Must(template.New("order.paid").Parse(
			"Hei!\n\nVi har mottatt betalingen for ordre {{.OrderID}} ({{.Total}}).\n" +
				"Velkommen på kurs!\n")),
	},
	events.TopicOrderCanceled: {
		subject: "Påmeldingen er kansellert",
		body: template.Must(template.New("order.canceled").Parse(
			"Hei!\n\nOrdre {{.OrderID}} er kansellert. Ingen betaling er trukket.\n")),
	},
	events.TopicPaymentFailed: {
		subject: "Betalingen feilet",
		body: template.Must(template.New("payment.failed").Parse(
			"Hei!\n\nBetalingen for ordre {{.OrderID}} gikk ikke gjennom.\n" +
				"Prøv igjen fra Min side; plassen holdes av til deg en stund til.\n")),
	},
	events.TopicMembershipNew: {
		subject: "Medlemskapet ditt er aktivt",
		body: template.Must(template.New("membership.created").Parse(
			"Hei!\n\nMedlemskapet ditt er registrert og medlemspriser gjelder fra nå.\n")),
	},
}

// Render produces the subject and body for an email task. Topics without a
// template report an error so the worker drops the task instead of sending
// an empty mail.
func Render(t EmailTask) (subject, body string, err error) {
	tpl, ok := emailTemplates[t.Topic]
	if !ok {
		return "", "", fmt.Errorf("notify: no template for topic %q", t.Topic)
	}
	var sb strings.Builder
	data := struct {
		OrderID string
		Total   string
	}{
		OrderID: t.OrderID,
		Total:   formatAmount(t.TotalCents, t.Currency),
	}
	if err := tpl.body.Execute(&sb, data); err != nil {
		return "", "", err
	}
	return tpl.subject, sb.String(), nil
}

// formatAmount renders øre as "1 234,50 NOK".
func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "NOK"
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(d)
	}
	return fmt.Sprintf("%s%s,%02d %s", sign, grouped.String(), frac, currency)
}
