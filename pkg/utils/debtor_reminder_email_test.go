package utils

import (
	"strings"
	"testing"
	"time"
)

func TestDebtorReminder(t *testing.T) {
	lines := []ReminderLine{
		{Creditor: "Ada <admin>", Amount: "12.50"},
		{Creditor: "Grace", Amount: "7.50"},
	}
	subject, body := DebtorReminder("Linus", "20.00", lines, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC))

	if !strings.Contains(subject, "₦20.00") {
		t.Errorf("subject missing total: %q", subject)
	}
	for _, want := range []string{"Hi Linus", "Ada &lt;admin&gt;: ₦12.50", "Grace: ₦7.50", "As of: May 14, 2024"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "%!") {
		t.Error("body has formatting errors")
	}
}
