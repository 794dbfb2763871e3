package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Command-line client for the rag-engine HTTP API",
	}

	defaultServer := os.Getenv("RAG_SERVER_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:9020"
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "base URL of the rag-engine server")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newReindexCmd())
	root.AddCommand(newClearMemoryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newIngestCmd() *cobra.Command {
	var documentID, title, ownerID string

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Index a text file as a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			if documentID == "" {
				documentID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if title == "" {
				title = documentID
			}

			payload := map[string]interface{}{
				"text":        string(content),
				"document_id": documentID,
				"title":       title,
				"owner_id":    ownerID,
			}

			var resp struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			if err := postJSON("/v1/rag/documents", payload, &resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("ingestion rejected: %s", resp.Error)
			}

			fmt.Printf("Ingested %s as document %q\n", args[0], documentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "id", "", "document id (defaults to the file name)")
	cmd.Flags().StringVar(&title, "title", "", "document title (defaults to the id)")
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id for filtered retrieval")
	return cmd
}

func newAskCmd() *cobra.Command {
	var identity string
	var verify bool
	var threshold float64

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"question":  strings.Join(args, " "),
				"identity":  identity,
				"verify":    verify,
				"threshold": threshold,
			}

			var resp struct {
				Answer string   `json:"answer"`
				Status string   `json:"status"`
				Score  *float64 `json:"score"`
				Reason string   `json:"reason"`
			}
			if err := postJSON("/v1/rag/ask", payload, &resp); err != nil {
				return err
			}

			fmt.Println(resp.Answer)
			if resp.Score != nil {
				fmt.Printf("\n[status: %s, score: %.2f]\n", resp.Status, *resp.Score)
			} else {
				fmt.Printf("\n[status: %s]\n", resp.Status)
			}
			if resp.Reason != "" {
				fmt.Printf("[reason: %s]\n", resp.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "cli", "conversation identity for follow-up questions")
	cmd.Flags().BoolVar(&verify, "verify", false, "run the answer through verification")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "verification threshold (server default when 0)")
	return cmd
}

func newReindexCmd() *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Enqueue background re-ingestion, for one document or all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"document_id": documentID}

			var resp struct {
				Status string   `json:"status"`
				JobIDs []string `json:"job_ids"`
			}
			if err := postJSON("/internal/rag/reindex", payload, &resp); err != nil {
				return err
			}

			fmt.Printf("Queued %d reindex job(s)\n", len(resp.JobIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "document", "", "reindex only this document id")
	return cmd
}

func newClearMemoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-memory <identity>",
		Short: "Delete an identity's conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, serverURL+"/v1/rag/memory/"+args[0], nil)
			if err != nil {
				return err
			}
			resp, err := httpClient().Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
			}

			fmt.Printf("Cleared memory for %q\n", args[0])
			return nil
		},
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

func postJSON(path string, payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := httpClient().Post(serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to call server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}
