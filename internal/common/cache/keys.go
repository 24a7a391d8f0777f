package cache

import "fmt"

// Key builders. All in-flight correlation state shares one namespace scheme so
// operators can inspect a live deployment with redis-cli.

func SessionKey(token string) string { return "session:" + token }

func InvoiceKey(hash string) string { return "invoice:" + hash }

func DepositKey(hash string) string { return "deposit:" + hash }

func WebhookKey(hash string) string { return "webhook:" + hash }

func AttemptKey(id string) string { return "attempt:" + id }

func ChallengeKey(k1 string) string { return "lnurl:challenge:" + k1 }

func UserDepositKey(userID string) string {
	return "deposit:user:" + userID
}

func UserInvoiceKey(userID, tournamentID string) string {
	return fmt.Sprintf("invoice:user:%s:%s", userID, tournamentID)
}

func RateKey(scope, subject string, window int64) string {
	return fmt.Sprintf("rate:%s:%s:%d", scope, subject, window)
}
