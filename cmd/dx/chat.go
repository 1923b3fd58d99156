package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/deptexhq/deptex/internal/client"
	"github.com/deptexhq/deptex/internal/ui"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:     "chat [question...]",
	Short:   "Ask the security agent about your supply chain",
	Long:    "Ask the security agent a one-shot question, or start an interactive session when no\nquestion is given. Pass --project to ground answers in a project's dependency data.",
	GroupID: "workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		conversationID, _ := cmd.Flags().GetString("conversation")

		if len(args) == 0 {
			return chatInteractive(projectID, conversationID)
		}

		resp, err := gateway.Chat(context.Background(), &client.ChatRequest{
			ConversationID: conversationID,
			ProjectID:      projectID,
			Question:       strings.Join(args, " "),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printChatReply(resp)
		fmt.Println(ui.RenderMuted("conversation: " + resp.ConversationID))
		return nil
	},
}

// chatInteractive holds one websocket open and loops stdin questions through
// it, keeping the conversation id across turns.
func chatInteractive(projectID, conversationID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	wsURL := strings.Replace(gatewayURL, "http", "ws", 1) + "/v1/agent/ws"
	header := http.Header{}
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}
	if actingUser != "" {
		header.Set("X-Deptex-User", actingUser)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("connecting to agent: %w", err)
	}
	defer conn.Close()

	// Unblock the pending read when the user interrupts.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("connected; ctrl-d or ctrl-c to leave")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print(ui.RenderAccent("you> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		err := conn.WriteJSON(client.ChatRequest{
			ConversationID: conversationID,
			ProjectID:      projectID,
			Question:       question,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var resp client.ChatResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		conversationID = resp.ConversationID
		printChatReply(&resp)
	}
}

func printChatReply(resp *client.ChatResponse) {
	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "agent error: %s\n", resp.Error)
		return
	}
	if resp.Parsed != nil {
		fmt.Println(resp.Parsed.Text)
		if len(resp.Parsed.References) > 0 {
			fmt.Println(ui.RenderMuted("refs: " + strings.Join(resp.Parsed.References, ", ")))
		}
		return
	}
	if resp.Message != nil {
		fmt.Println(resp.Message.Content)
	}
}

var chatConversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List stored conversation ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := gateway.ListConversations(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(ids)
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "Show a conversation transcript, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		turns, err := gateway.GetConversation(context.Background(), args[0], limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(turns)
			return nil
		}
		for _, t := range turns {
			ts := t.CreatedAt.Format("15:04:05")
			fmt.Printf("%s %s: %s\n", ui.RenderMuted(ts), ui.RenderAccent(string(t.Role)), t.Parsed.Text)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringP("project", "p", "", "project id used to ground the agent's answers")
	chatCmd.Flags().StringP("conversation", "c", "", "resume an existing conversation")

	chatHistoryCmd.Flags().Int("limit", 0, "maximum number of messages (0 = server default)")

	chatCmd.AddCommand(chatConversationsCmd)
	chatCmd.AddCommand(chatHistoryCmd)
}
