package memory

import (
	"time"

	"qr-wallet/internal/core/domain"

	"github.com/shopspring/decimal"
)

// SeedDemo loads the field agents and prepaid vouchers a fresh demo install starts with.
func SeedDemo(r *InstrumentRepo, now time.Time) {
	now = now.UTC()

	for _, a := range []domain.Agent{
		{ID: "agent-001", Name: "Central Market Kiosk", Location: "Central Market", Phone: "+15550000001", IsActive: true,
			MaxAmount: decimal.NewFromInt(1000), DailyLimit: decimal.NewFromInt(5000), Commission: decimal.RequireFromString("1.50")},
		{ID: "agent-002", Name: "Harbor Road Shop", Location: "Harbor Road", Phone: "+15550000002", IsActive: true,
			MaxAmount: decimal.NewFromInt(500), DailyLimit: decimal.NewFromInt(2000), Commission: decimal.RequireFromString("1.00")},
		{ID: "agent-003", Name: "Station Square", Location: "Station Square", Phone: "+15550000003", IsActive: false,
			MaxAmount: decimal.NewFromInt(500), DailyLimit: decimal.NewFromInt(2000), Commission: decimal.RequireFromString("1.00")},
	} {
		a.CreatedAt = now
		r.AddAgent(a)
	}

	for _, v := range []domain.Voucher{
		{ID: "voucher-001", Code: "ABC123", Amount: decimal.NewFromInt(100), Series: "DEMO"},
		{ID: "voucher-002", Code: "XYZ789", Amount: decimal.NewFromInt(50), Series: "DEMO"},
		{ID: "voucher-003", Code: "GIFT25", Amount: decimal.NewFromInt(25), Series: "DEMO"},
	} {
		v.Currency = "USD"
		v.ExpiresAt = now.AddDate(0, 6, 0)
		v.CreatedAt = now
		r.AddVoucher(v)
	}
}
