package services

import (
	"fmt"
	"html"
	"net/url"

	"firecontest-backend/models"
	"firecontest-backend/utils"
)

// Notifier delivers email without blocking the caller. Delivery failures are
// the notifier's concern and never surface to the request.
type Notifier interface {
	Notify(to, subject, htmlBody string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string, string) {}

func orNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func resetPasswordEmail(frontendURL, token, userID string) (string, string) {
	link := fmt.Sprintf("%s/reset-password?token=%s&id=%s", frontendURL, url.QueryEscape(token), url.QueryEscape(userID))
	body := fmt.Sprintf(`<h2>Password reset</h2>
<p>Someone asked to reset the password for your FireContest account.</p>
<p><a href="%s">Reset your password</a></p>
<p>The link expires soon and can be used once. If you did not ask for this, ignore this email.</p>`, html.EscapeString(link))
	return "Reset your FireContest password", body
}

func paymentReviewedEmail(username string, contest *models.Contest, p *models.Payment) (string, string) {
	verdict := "approved"
	next := "You can now join the contest from the app."
	if p.Status == models.PaymentRejected {
		verdict = "rejected"
		next = "If you think this is a mistake, contact support with your UTR."
	}
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your payment of <b>%s</b> for <b>%s</b> was %s.</p>
<p>%s</p>`,
		html.EscapeString(username), utils.FormatINR(p.Amount), html.EscapeString(contest.Title), verdict, next)
	return fmt.Sprintf("Payment %s: %s", verdict, contest.Title), body
}

func completionPromptEmail(contest *models.Contest) (string, string) {
	body := fmt.Sprintf(`<p>The contest <b>%s</b> went live at %s.</p>
<p>%d players are on the roster. Record the results to finish it.</p>`,
		html.EscapeString(contest.Title),
		utils.OrZero(contest.Results.MatchStartedAt).Format("02 Jan 15:04 MST"),
		contest.ParticipantCount)
	return "Finish contest: " + contest.Title, body
}
