package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/penalty"
	"github.com/pentedigital/extrashifty/internal/reservation"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// The functions in this file render domain structs to JSON. None of the
// domain packages carry json tags of their own — they are ledger and
// state-machine types, not wire formats — so the rendering happens once,
// here, at the one seam that is allowed to know about both.

func walletJSON(w *wallet.Wallet) gin.H {
	return gin.H{
		"id":                w.ID,
		"userId":            w.UserID,
		"balance":           w.Balance.String(),
		"reserved":          w.Reserved.String(),
		"available":         w.Available().String(),
		"minimumBalance":    w.MinimumBalance.String(),
		"status":            w.Status,
		"autoTopup":         autoTopupJSON(w.AutoTopup),
		"gracePeriodEndsAt": w.GracePeriodEndsAt,
		"externalAccountId": w.ExternalAccountID,
		"createdAt":         w.CreatedAt,
		"updatedAt":         w.UpdatedAt,
	}
}

func autoTopupJSON(a wallet.AutoTopup) gin.H {
	return gin.H{
		"enabled":       a.Enabled,
		"threshold":     a.Threshold.String(),
		"amount":        a.Amount.String(),
		"paymentMethod": a.PaymentMethod,
	}
}

func transactionJSON(t *wallet.Transaction) gin.H {
	return gin.H{
		"id":             t.ID,
		"walletId":       t.WalletID,
		"type":           t.Type,
		"amount":         t.Amount.String(),
		"fee":            t.Fee.String(),
		"netAmount":      t.NetAmount.String(),
		"status":         t.Status,
		"idempotencyKey": t.IdempotencyKey,
		"relatedShiftId": t.RelatedShiftID,
		"description":    t.Description,
		"createdAt":      t.CreatedAt,
		"completedAt":    t.CompletedAt,
		"reversedAt":     t.ReversedAt,
		"reversalOfId":   t.ReversalOfID,
	}
}

func transactionsJSON(txs []*wallet.Transaction) []gin.H {
	out := make([]gin.H, len(txs))
	for i, t := range txs {
		out[i] = transactionJSON(t)
	}
	return out
}

func holdJSON(h *wallet.FundsHold) gin.H {
	return gin.H{
		"id":         h.ID,
		"walletId":   h.WalletID,
		"shiftId":    h.ShiftID,
		"amount":     h.Amount.String(),
		"kind":       h.Kind,
		"status":     h.Status,
		"expiresAt":  h.ExpiresAt,
		"releasedAt": h.ReleasedAt,
		"createdAt":  h.CreatedAt,
	}
}

func shiftJSON(s *shift.Shift) gin.H {
	return gin.H{
		"id":                s.ID,
		"companyId":         s.CompanyID,
		"postedByAgencyId":  s.PostedByAgencyID,
		"clientCompanyId":   s.ClientCompanyID,
		"isAgencyManaged":   s.IsAgencyManaged,
		"date":              s.Date,
		"startTime":         s.StartTime,
		"endTime":           s.EndTime,
		"hourlyRate":        s.HourlyRate.String(),
		"spotsTotal":        s.SpotsTotal,
		"spotsFilled":       s.SpotsFilled,
		"status":            s.Status,
		"clockInAt":         s.ClockInAt,
		"clockOutAt":        s.ClockOutAt,
		"actualHoursWorked": s.ActualHoursWorked,
		"createdAt":         s.CreatedAt,
	}
}

func applicationJSON(a *shift.Application) gin.H {
	return gin.H{
		"id":          a.ID,
		"shiftId":     a.ShiftID,
		"applicantId": a.ApplicantID,
		"status":      a.Status,
		"createdAt":   a.CreatedAt,
		"updatedAt":   a.UpdatedAt,
	}
}

func applicationsJSON(apps []*shift.Application) []gin.H {
	out := make([]gin.H, len(apps))
	for i, a := range apps {
		out[i] = applicationJSON(a)
	}
	return out
}

func scheduledReserveJSON(r *reservation.ScheduledReserve) gin.H {
	return gin.H{
		"id":            r.ID,
		"shiftId":       r.ShiftID,
		"walletId":      r.WalletID,
		"shiftDate":     r.ShiftDate,
		"amount":        r.Amount.String(),
		"executeAt":     r.ExecuteAt,
		"status":        r.Status,
		"failureReason": r.FailureReason,
	}
}

func scheduledReservesJSON(rs []*reservation.ScheduledReserve) []gin.H {
	out := make([]gin.H, len(rs))
	for i, r := range rs {
		out[i] = scheduledReserveJSON(r)
	}
	return out
}

func disputeJSON(d *dispute.Dispute) gin.H {
	return gin.H{
		"id":                 d.ID,
		"shiftId":            d.ShiftID,
		"raisedByUserId":     d.RaisedByUserID,
		"againstUserId":      d.AgainstUserID,
		"amountDisputed":     d.AmountDisputed.String(),
		"reason":             d.Reason,
		"evidence":           d.Evidence,
		"status":             d.Status,
		"resolution":         d.Resolution,
		"splitPct":           d.SplitPct,
		"adminNotes":         d.AdminNotes,
		"resolutionDeadline": d.ResolutionDeadline,
		"resolvedAt":         d.ResolvedAt,
		"createdAt":          d.CreatedAt,
	}
}

func penaltyJSON(p *penalty.Penalty) gin.H {
	return gin.H{
		"id":              p.ID,
		"userId":          p.UserID,
		"shiftId":         p.ShiftID,
		"amount":          p.Amount.String(),
		"reason":          p.Reason,
		"status":          p.Status,
		"collectedAmount": p.CollectedAmount.String(),
		"waivedBy":        p.WaivedBy,
		"createdAt":       p.CreatedAt,
	}
}

func strikeJSON(s *penalty.Strike) gin.H {
	return gin.H{
		"id":            s.ID,
		"userId":        s.UserID,
		"shiftId":       s.ShiftID,
		"reason":        s.Reason,
		"createdAt":     s.CreatedAt,
		"expiresAt":     s.ExpiresAt,
		"isActive":      s.IsActive,
		"isWarningOnly": s.IsWarningOnly,
	}
}

func strikesJSON(ss []*penalty.Strike) []gin.H {
	out := make([]gin.H, len(ss))
	for i, s := range ss {
		out[i] = strikeJSON(s)
	}
	return out
}

func appealJSON(a *penalty.Appeal) gin.H {
	return gin.H{
		"id":                  a.ID,
		"userId":              a.UserID,
		"appealType":          a.AppealType,
		"relatedId":           a.RelatedID,
		"reason":              a.Reason,
		"evidenceUrls":        a.EvidenceURLs,
		"emergencyType":       a.EmergencyType,
		"status":              a.Status,
		"appealDeadline":      a.AppealDeadline,
		"frivolousFeeCharged": a.FrivolousFeeCharged,
		"emergencyWaiverUsed": a.EmergencyWaiverUsed,
		"createdAt":           a.CreatedAt,
		"reviewedAt":          a.ReviewedAt,
	}
}

func payoutJSON(p *payout.Payout) gin.H {
	return gin.H{
		"id":                p.ID,
		"userId":            p.UserID,
		"walletId":          p.WalletID,
		"amount":            p.Amount.String(),
		"fee":               p.Fee.String(),
		"netAmount":         p.NetAmount.String(),
		"offsetApplied":     p.OffsetApplied.String(),
		"method":            p.Method,
		"status":            p.Status,
		"processorPayoutId": p.ProcessorPayoutID,
		"requestedAt":       p.RequestedAt,
		"processedAt":       p.ProcessedAt,
		"failReason":        p.FailReason,
	}
}

func payoutsJSON(ps []*payout.Payout) []gin.H {
	out := make([]gin.H, len(ps))
	for i, p := range ps {
		out[i] = payoutJSON(p)
	}
	return out
}
