package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var (
	chatAddr    string
	chatAPIKey  string
	chatAgentID string
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat REPL against a running gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatAddr, "addr", "http://localhost:8080", "gateway base URL")
	chatCmd.Flags().StringVar(&chatAPIKey, "api-key", "", "tenant API key (required)")
	chatCmd.Flags().StringVar(&chatAgentID, "agent", "", "agent id (created on the fly when empty)")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id (created on the fly when empty)")
	_ = chatCmd.MarkFlagRequired("api-key")
}

type chatClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func (c *chatClient) do(method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func runChat() error {
	client := &chatClient{
		base:   strings.TrimRight(chatAddr, "/"),
		apiKey: chatAPIKey,
		http:   &http.Client{Timeout: 60 * time.Second},
	}

	agentID := chatAgentID
	if agentID == "" {
		var agent struct {
			ID string `json:"id"`
		}
		err := client.do(http.MethodPost, "/agents", map[string]any{
			"name":             "repl",
			"primaryProvider":  "vendora",
			"fallbackProvider": "vendorb",
			"systemPrompt":     "You are a helpful assistant.",
		}, nil, &agent)
		if err != nil {
			return fmt.Errorf("create agent: %w", err)
		}
		agentID = agent.ID
		fmt.Println("created agent", agentID)
	}

	sessionID := chatSession
	if sessionID == "" {
		var sess struct {
			ID string `json:"id"`
		}
		err := client.do(http.MethodPost, "/sessions", map[string]any{
			"agentId":    agentID,
			"customerId": "repl",
		}, nil, &sess)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		sessionID = sess.ID
		fmt.Println("created session", sessionID)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("chatting; ctrl-c or /quit to exit")
	for {
		input, err := line.Prompt("> ")
		if err != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			return nil
		}
		line.AppendHistory(input)

		var reply struct {
			ReplyText    string  `json:"replyText"`
			ProviderUsed string  `json:"providerUsed"`
			TokensIn     int     `json:"tokensIn"`
			TokensOut    int     `json:"tokensOut"`
			Cost         float64 `json:"cost"`
			LatencyMs    int64   `json:"latencyMs"`
		}
		err = client.do(http.MethodPost, "/sessions/"+sessionID+"/messages",
			map[string]string{"text": input},
			map[string]string{"Idempotency-Key": uuid.NewString()},
			&reply,
		)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		fmt.Println(reply.ReplyText)
		fmt.Printf("  [%s | %d+%d tokens | $%.6f | %dms]\n",
			reply.ProviderUsed, reply.TokensIn, reply.TokensOut, reply.Cost, reply.LatencyMs)
	}
}
