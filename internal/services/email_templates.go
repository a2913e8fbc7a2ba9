package services

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const brandName = "Maitri Wellness Center"

var emailFuncs = template.FuncMap{
	"money": FormatPrice,
	"date": func(t time.Time) string {
		return t.Format("2 January 2006")
	},
	"datetime": func(t time.Time) string {
		return t.Format("2 Jan 2006 15:04 MST")
	},
	"lineTotal": func(price decimal.Decimal, qty int) decimal.Decimal {
		return price.Mul(decimal.NewFromInt(int64(qty)))
	},
	"title": titleCase,
	"year":  func() int { return time.Now().Year() },
}

// titleCase turns a status such as out_for_delivery into "Out for delivery".
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const emailLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto;">
<div style="background-color: #4a7c59; color: #fff; padding: 20px; text-align: center;"><h1>{{.Title}}</h1></div>
<div style="padding: 20px; background-color: #f9f9f9;">{{template "content" .}}</div>
<div style="text-align: center; font-size: 12px; color: #777; padding: 10px;">&copy; {{year}} ` + brandName + `. All rights reserved.</div>
</body>
</html>{{end}}`

var emailTemplates = map[string]string{
	"giftcard_buyer": `{{define "content"}}
<p>Dear {{.Card.BuyerName}},</p>
<p>Thank you for purchasing a gift card. Your gift card details are below.</p>
<div style="border: 2px dashed #4a7c59; padding: 20px; text-align: center;">
<p>Gift Card For: <strong>{{.Recipient}}</strong></p>
<p style="font-size: 28px; font-weight: bold;">{{money .Card.OriginalAmount .Card.Currency}}</p>
<p style="font-size: 22px; letter-spacing: 2px;">{{.Card.Code}}</p>
<p>Valid until: {{date .Card.ExpiryDate}}</p>
</div>
{{if .Card.Message}}<p><em>"{{.Card.Message}}"</em></p>{{end}}
{{end}}`,

	"giftcard_recipient": `{{define "content"}}
<p>Dear {{.Recipient}},</p>
<p>{{.Card.BuyerName}} has sent you a gift card for ` + brandName + `. Your gift card details are below.</p>
<div style="border: 2px dashed #4a7c59; padding: 20px; text-align: center;">
<p style="font-size: 28px; font-weight: bold;">{{money .Card.OriginalAmount .Card.Currency}}</p>
<p style="font-size: 22px; letter-spacing: 2px;">{{.Card.Code}}</p>
<p>Valid until: {{date .Card.ExpiryDate}}</p>
</div>
{{if .Card.Message}}<p><em>"{{.Card.Message}}"</em></p>{{end}}
{{end}}`,

	"giftcard_admin": `{{define "content"}}
<p>A new gift card has been purchased.</p>
<table cellpadding="6">
<tr><td>Purchase Date</td><td>{{datetime .Card.PurchaseDate}}</td></tr>
<tr><td>Gift Code</td><td>{{.Card.Code}}</td></tr>
<tr><td>Amount</td><td>{{money .Card.OriginalAmount .Card.Currency}}</td></tr>
<tr><td>Buyer Name</td><td>{{.Card.BuyerName}}</td></tr>
<tr><td>Buyer Email</td><td>{{.Card.BuyerEmail}}</td></tr>
<tr><td>Recipient Name</td><td>{{.Card.RecipientName}}</td></tr>
<tr><td>Recipient Email</td><td>{{.Card.RecipientEmail}}</td></tr>
</table>
{{end}}`,

	"giftcard_update": `{{define "content"}}
<p>Dear {{.Card.BuyerName}},</p>
<p>We're writing to inform you about an update to your gift card for {{.Recipient}}.</p>
<p>Current Amount: <strong>{{money .Card.CurrentAmount .Card.Currency}}</strong></p>
<p>Gift Code: <strong>{{.Card.Code}}</strong></p>
{{with .Change}}<ul>
{{if .PreviousAmount}}<li>Previous Balance: {{money (deref .PreviousAmount) $.Card.Currency}}</li>{{end}}
{{if .NewAmount}}<li>New Balance: {{money (deref .NewAmount) $.Card.Currency}}</li>{{end}}
{{if .PreviousStatus}}<li>Previous Status: {{title .PreviousStatus}}</li>{{end}}
{{if .NewStatus}}<li>New Status: {{title .NewStatus}}</li>{{end}}
{{if .Note}}<li>Note: {{.Note}}</li>{{end}}
</ul>{{end}}
{{end}}`,

	"order_customer": `{{define "content"}}
<p>Dear {{.Order.CustomerName}},</p>
<p>Thank you for your order. Your order number is <strong>{{.Order.ID}}</strong>.</p>
{{template "order_items" .}}
{{end}}`,

	"order_admin": `{{define "content"}}
<p>A new order has been placed by {{.Order.CustomerName}} ({{.Order.CustomerEmail}}).</p>
<p>Order number: <strong>{{.Order.ID}}</strong>, placed {{datetime .Order.OrderDate}}.</p>
{{template "order_items" .}}
{{end}}`,

	"order_status": `{{define "content"}}
<p>Dear {{.Order.CustomerName}},</p>
<p>The status of your order <strong>{{.Order.ID}}</strong> is now <strong>{{title .Order.Status}}</strong>.</p>
{{if .Note}}<p>{{.Note}}</p>{{end}}
{{template "order_items" .}}
{{end}}`,

	"admin_otp": `{{define "content"}}
<p>A login to the admin dashboard was requested. Use this code to finish signing in:</p>
<p style="font-size: 32px; font-weight: bold; letter-spacing: 6px; text-align: center;">{{.OTP}}</p>
<p>The code expires in {{.ExpiryMinutes}} minutes.</p>
{{template "device" .}}
{{end}}`,

	"admin_login_alert": `{{define "content"}}
<p><strong>Email:</strong> {{.Alert.Email}}</p>
<p><strong>Status:</strong> {{.StatusText}}</p>
<p><strong>Time:</strong> {{datetime .Alert.Time}}</p>
{{template "device" .}}
{{if not .Alert.Success}}<p><strong>Reason:</strong> {{.Alert.Reason}}</p>{{end}}
{{if .LogoutURL}}<p>If this was not expected, sign every admin out immediately:</p>
<p><a href="{{.LogoutURL}}" style="background-color: #c0392b; color: #fff; padding: 10px 16px; text-decoration: none;">Log out all admin sessions</a></p>
<p>The link is valid for 24 hours and can be used once.</p>{{end}}
{{end}}`,
}

const sharedPartials = `{{define "order_items"}}<table cellpadding="6" style="width: 100%; border-collapse: collapse;">
<tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{money (lineTotal .UnitPrice .Quantity) $.Order.Currency}}</td></tr>
{{end}}<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{money .Order.Total .Order.Currency}}</strong></td></tr>
</table>
{{with .Order.ShippingAddress}}<p><strong>Shipping to:</strong><br>{{.Line1}}{{if .Line2}}<br>{{.Line2}}{{end}}<br>{{.City}}{{if .State}}, {{.State}}{{end}} {{.Postcode}}<br>{{.Country}}</p>{{end}}{{end}}
{{define "device"}}{{with .Device}}<p><strong>Browser:</strong> {{or .Browser "Unknown"}}</p>
<p><strong>Operating System:</strong> {{or .OS "Unknown"}}</p>
<p><strong>IP Address:</strong> {{or .IP "Unknown"}}</p>{{end}}{{end}}`

var compiledEmails = compileEmails()

func compileEmails() map[string]*template.Template {
	funcs := template.FuncMap{
		"deref": func(d *decimal.Decimal) decimal.Decimal {
			if d == nil {
				return decimal.Zero
			}
			return *d
		},
	}
	for k, v := range emailFuncs {
		funcs[k] = v
	}

	out := make(map[string]*template.Template, len(emailTemplates))
	for name, body := range emailTemplates {
		t := template.Must(template.New(name).Funcs(funcs).Parse(emailLayout))
		template.Must(t.Parse(sharedPartials))
		template.Must(t.Parse(body))
		out[name] = t
	}
	return out
}

// renderEmail executes the named template inside the shared layout. data must
// carry a Title field.
func renderEmail(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := compiledEmails[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
