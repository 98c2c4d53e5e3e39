package utils

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// ReminderLine is one creditor the recipient still owes.
type ReminderLine struct {
	Creditor string
	Amount   string
}

// DebtorReminder renders the subject and HTML body of a daily reminder.
func DebtorReminder(firstName, total string, lines []ReminderLine, asOf time.Time) (string, string) {
	subject := fmt.Sprintf("💰 Reminder: You Still Owe ₦%s", total)

	var rows strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&rows, "<p>%s: ₦%s</p>", html.EscapeString(l.Creditor), l.Amount)
	}

	body := fmt.Sprintf(`
	<!DOCTYPE html>
	<html lang="en">
	<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Payment Reminder</title>
	<style>
		body {
			font-family: 'Segoe UI', Roboto, Arial, sans-serif;
			background-color: #f6f8f7;
			margin: 0;
			padding: 0;
			color: #333;
		}
		.container {
			max-width: 480px;
			margin: 25px auto;
			background: #ffffff;
			border-radius: 12px;
			box-shadow: 0 4px 16px rgba(0, 0, 0, 0.08);
			overflow: hidden;
			border-top: 5px solid #d9534f;
		}
		.header {
			background-color: #d9534f;
			color: #ffffff;
			text-align: center;
			padding: 18px 12px;
		}
		.header h1 {
			margin: 0;
			font-size: 18px;
			font-weight: 600;
		}
		.content {
			padding: 20px 18px;
		}
		.message {
			font-size: 14px;
			line-height: 1.6;
			color: #444;
		}
		.amount-box {
			background: #fff6f6;
			border: 1px solid #f1c1c1;
			border-radius: 8px;
			padding: 12px 14px;
			margin: 16px 0;
			text-align: center;
		}
		.amount-box h3 {
			margin: 0;
			color: #d9534f;
			font-size: 16px;
			font-weight: 700;
		}
		.amount-box p {
			margin: 6px 0 0;
			font-size: 13px;
			color: #555;
		}
		.footer {
			background: #f6f6f6;
			text-align: center;
			padding: 14px;
			font-size: 12px;
			color: #777;
			border-top: 1px solid #e5e5e5;
		}
		.brand {
			color: #0a4d3c;
			font-weight: bold;
		}
	</style>
	</head>

	<body>
		<div class="container">
			<div class="header">
				<h1>Payment Reminder 💬</h1>
			</div>
			<div class="content">
				<p class="message">
					Hi %s,<br><br>
					This is a friendly reminder that you still have an outstanding balance of ₦<b>%s</b>
					across your shared expenses.
				</p>

				<div class="amount-box">
					<h3>₦%s Due</h3>
					%s
					<p>As of: %s</p>
				</div>

				<p class="message">
					Please settle up with the people below through <b>Qiyana Split Ledger</b> and keep your account in good standing.
				</p>

				<p class="message">
					Thank you for keeping your group finances balanced. 💚
				</p>
			</div>
			<div class="footer">
				&copy; %d <span class="brand">Qiyana Split Ledger</span> — Smarter Sharing. Stronger Bonds.
			</div>
		</div>
	</body>
	</html>
	`, html.EscapeString(firstName), total, total, rows.String(), asOf.Format("Jan 2, 2006"), time.Now().Year())

	return subject, body
}

// SendDebtorReminderEmail mails the reminder rendered by DebtorReminder.
func (m *Mailer) SendDebtorReminderEmail(to, firstName, total string, lines []ReminderLine, asOf time.Time) error {
	subject, body := DebtorReminder(firstName, total, lines, asOf)
	return m.SendEmail(to, subject, body)
}
