package lnbits

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "lightning-tournament-backend/internal/common/errors"
)

// lnurlResolveTimeout bounds the two LNURL-pay round trips separately from the
// main Lightning API timeout; well-known endpoints on arbitrary hosts are the
// least trustworthy dependency in the payout path.
const lnurlResolveTimeout = 5 * time.Second

var lightningAddressRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

type lnurlPayParams struct {
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"`
	MaxSendable int64  `json:"maxSendable"`
	Tag         string `json:"tag"`
}

type lnurlPayCallback struct {
	PR     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// resolveLnurlPay turns user@host into a bolt11 invoice for amountSats via the
// LNURL-pay protocol (LUD-16).
func (c *Client) resolveLnurlPay(ctx context.Context, address string, amountSats int64, memo string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if !lightningAddressRegex.MatchString(addr) {
		return "", apperrors.New(apperrors.ErrCodeInvalidAddress, "not a valid Lightning address")
	}
	parts := strings.SplitN(addr, "@", 2)
	wellKnown := fmt.Sprintf("https://%s/.well-known/lnurlp/%s", parts[1], parts[0])

	var params lnurlPayParams
	if err := c.lnurlGet(ctx, wellKnown, &params); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInvalidAddress, "LNURL-pay endpoint unreachable")
	}
	if params.Tag != "payRequest" || params.Callback == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidAddress, "LNURL-pay metadata invalid")
	}

	amountMsat := amountSats * 1000
	if amountMsat < params.MinSendable || (params.MaxSendable > 0 && amountMsat > params.MaxSendable) {
		return "", apperrors.New(apperrors.ErrCodeInvalidAddress, "amount outside receiver's accepted range").
			WithDetail("min_msat", params.MinSendable).
			WithDetail("max_msat", params.MaxSendable)
	}

	cb, err := url.Parse(params.Callback)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidAddress, "LNURL-pay callback invalid")
	}
	q := cb.Query()
	q.Set("amount", fmt.Sprintf("%d", amountMsat))
	if memo != "" {
		q.Set("comment", memo)
	}
	cb.RawQuery = q.Encode()

	var result lnurlPayCallback
	if err := c.lnurlGet(ctx, cb.String(), &result); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodePaymentFailed, "LNURL-pay callback unreachable")
	}
	if strings.EqualFold(result.Status, "ERROR") || result.PR == "" {
		reason := result.Reason
		if reason == "" {
			reason = "no invoice returned"
		}
		return "", apperrors.New(apperrors.ErrCodePaymentFailed, "LNURL-pay callback rejected: "+reason)
	}
	return result.PR, nil
}

func (c *Client) lnurlGet(ctx context.Context, rawURL string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, lnurlResolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lnurl http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
