package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dxlstream/dxlerrors"
	"dxlstream/internal/httpx"
	"dxlstream/internal/wire"
)

// Create provisions a server-side consumer instance. It always resets local
// consumer state first (§4.6), fails with a Permanent error if
// consumer_group is unset, and sets ConsumerID from the response's
// consumerInstanceId on success.
func (c *Channel) Create(ctx context.Context) error {
	if !c.Active() {
		return permanent("channel: not active")
	}
	if c.cfg.ConsumerGroup == "" {
		return permanent("channel: consumerGroup is required")
	}
	c.Reset()

	_, err := httpx.Retry(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.createOnce(ctx)
	})
	return err
}

func (c *Channel) createOnce(ctx context.Context) error {
	body := wire.CreateConsumerRequest{
		ConsumerGroup: c.cfg.ConsumerGroup,
		Configs:       c.cfg.consumerConfigs(),
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.consumerPrefix()+"/consumers", body)
	if err != nil {
		return err
	}
	resp, err := httpx.Do(c.httpClient, c.cfg.Auth, req, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out wire.CreateConsumerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return permanent(fmt.Sprintf("channel: decode create response: %v", err))
	}
	if out.ConsumerInstanceID == "" {
		return permanent("channel: create response missing consumerInstanceId")
	}

	c.mu.Lock()
	c.consumerID = out.ConsumerInstanceID
	c.mu.Unlock()
	c.log().Infof("dxlstream: consumer created id=%s", out.ConsumerInstanceID)
	return nil
}

// Subscribe installs topics as the active subscription set. If topics
// element-wise equals the current ActiveSubscriptions, it is a no-op
// completing without any HTTP request (§4.5's subscribe optimisation,
// testable property 5). If no consumer exists yet, Create runs first.
func (c *Channel) Subscribe(ctx context.Context, topics []string) error {
	if !c.Active() {
		return permanent("channel: not active")
	}
	if len(topics) == 0 {
		return permanent("channel: subscribe requires at least one topic")
	}

	c.mu.Lock()
	same := equalTopics(c.activeSubscriptions, topics)
	c.requestedSubscriptions = append([]string(nil), topics...)
	c.mu.Unlock()
	if same {
		return nil
	}

	if c.ConsumerID() == "" {
		if err := c.Create(ctx); err != nil {
			return err
		}
	}

	_, err := httpx.Retry(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.subscribeOnce(ctx, topics)
	})
	return err
}

func (c *Channel) subscribeOnce(ctx context.Context, topics []string) error {
	id := c.ConsumerID()
	if id == "" {
		return dxlerrors.Consumerf("channel: no consumer to subscribe")
	}
	url := fmt.Sprintf("%s/consumers/%s/subscription", c.consumerPrefix(), id)
	req, err := c.newJSONRequest(ctx, http.MethodPost, url, wire.SubscribeRequest{Topics: topics})
	if err != nil {
		return err
	}
	resp, err := httpx.Do(c.httpClient, c.cfg.Auth, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	c.mu.Lock()
	c.activeSubscriptions = append([]string(nil), topics...)
	c.mu.Unlock()
	c.log().Infof("dxlstream: subscribed topics=%v", topics)
	return nil
}

// Consume polls for records, appending each to CommitLog and returning the
// decoded payloads in order. It requires a non-empty ActiveSubscriptions.
func (c *Channel) Consume(ctx context.Context) ([]any, error) {
	if !c.Active() {
		return nil, permanent("channel: not active")
	}
	if len(c.ActiveSubscriptions()) == 0 {
		return nil, permanent("channel: consume requires an active subscription")
	}
	return httpx.Retry(ctx, c, func(ctx context.Context) ([]any, error) {
		return c.consumeOnce(ctx)
	})
}

func (c *Channel) consumeOnce(ctx context.Context) ([]any, error) {
	id := c.ConsumerID()
	if id == "" {
		return nil, dxlerrors.Consumerf("channel: no consumer to consume from")
	}
	url := fmt.Sprintf("%s/consumers/%s/records", c.consumerPrefix(), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpx.Do(c.httpClient, c.cfg.Auth, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed wire.ConsumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, permanent(fmt.Sprintf("channel: decode consume response: %v", err))
	}

	payloads := make([]any, 0, len(parsed.Records))
	entries := make([]CommitEntry, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		entries = append(entries, CommitEntry{
			Topic:     rec.RoutingData.Topic,
			Partition: rec.Partition,
			Offset:    rec.Offset,
		})
		decoded, err := wire.DecodePayload(rec.Message.Payload)
		if err != nil {
			return nil, permanent(fmt.Sprintf("channel: decode payload: %v", err))
		}
		payloads = append(payloads, decoded)
	}

	c.mu.Lock()
	c.commitLog = append(c.commitLog, entries...)
	c.mu.Unlock()
	return payloads, nil
}

// Commit acknowledges the pending CommitLog to the server and clears it on
// success (invariant 3). If the log is empty, Commit succeeds immediately
// without an HTTP request.
func (c *Channel) Commit(ctx context.Context) error {
	if !c.Active() {
		return permanent("channel: not active")
	}
	if len(c.CommitLog()) == 0 {
		return nil
	}
	_, err := httpx.Retry(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.commitOnce(ctx)
	})
	return err
}

func (c *Channel) commitOnce(ctx context.Context) error {
	id := c.ConsumerID()
	if id == "" {
		return dxlerrors.Consumerf("channel: no consumer to commit against")
	}
	entries := c.CommitLog()
	if len(entries) == 0 {
		return nil
	}
	offsets := make([]wire.OffsetEntry, len(entries))
	for i, e := range entries {
		offsets[i] = wire.OffsetEntry{Topic: e.Topic, Partition: e.Partition, Offset: e.Offset}
	}
	url := fmt.Sprintf("%s/consumers/%s/offsets", c.consumerPrefix(), id)
	req, err := c.newJSONRequest(ctx, http.MethodPost, url, wire.CommitRequest{Offsets: offsets})
	if err != nil {
		return err
	}
	resp, err := httpx.Do(c.httpClient, c.cfg.Auth, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	c.mu.Lock()
	c.commitLog = nil
	c.mu.Unlock()
	return nil
}

// Produce submits payload verbatim as JSON to the producer prefix. Produce
// is never driven through the retry driver (spec.md's resolved Open
// Question #1: no retry for produce).
func (c *Channel) Produce(ctx context.Context, payload wire.ProduceRequest) error {
	if !c.Active() {
		return permanent("channel: not active")
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return permanent(fmt.Sprintf("channel: marshal produce payload: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.producerPrefix()+"/produce", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.dxl.intel.records.v1+json")
	resp, err := httpx.Do(c.httpClient, c.cfg.Auth, req, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return nil
}

// Delete removes the server-side consumer instance. If no consumer exists,
// Delete is a no-op success. On either success or 404, local consumer state
// is cleared — the consumer id is cleared only after the response has been
// classified (spec.md's resolved Open Question #2), never before issuing
// the DELETE. A 404 is additionally surfaced to the caller as a Consumer
// error observation ("consumer not found; reset anyway"). Delete is never
// driven through the retry driver.
func (c *Channel) Delete(ctx context.Context) error {
	if !c.Active() {
		return permanent("channel: not active")
	}
	id := c.ConsumerID()
	if id == "" {
		return nil
	}
	url := fmt.Sprintf("%s/consumers/%s", c.consumerPrefix(), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpx.Do(c.httpClient, c.cfg.Auth, req, true)
	if err == nil {
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		c.Reset()
		return nil
	}
	if dxlerrors.IsConsumerLoss(err) {
		c.Reset()
		return err
	}
	return err
}

func (c *Channel) newJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, permanent(fmt.Sprintf("channel: marshal request body: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
