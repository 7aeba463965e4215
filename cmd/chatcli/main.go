package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"golang.org/x/term"

	"gemchat-backend/internal/client"
	"gemchat-backend/internal/models"
	"gemchat-backend/internal/render"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#004d56")).Padding(0, 1)
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#05101c")).Background(lipgloss.Color("#64f3d5")).Padding(0, 1)
	codeStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("141")).Padding(0, 1)
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
)

func main() {
	apiURL := flag.String("api", envOr("GEMCHAT_API", "http://localhost:8080/api/v1"), "API base URL")
	email := flag.String("email", os.Getenv("GEMCHAT_EMAIL"), "account email")
	flag.Parse()

	ctx := context.Background()

	c, err := client.New(*apiURL)
	if err != nil {
		log.Fatalf("✗ %v", err)
	}

	if *email == "" {
		log.Fatal("✗ -email is required")
	}
	password, err := readPassword()
	if err != nil {
		log.Fatalf("✗ failed to read password: %v", err)
	}

	if _, err := c.Login(ctx, *email, password); err != nil {
		log.Fatalf("✗ %v", err)
	}
	status, err := c.AuthStatus(ctx)
	if err != nil {
		log.Fatalf("✗ %v", err)
	}
	fmt.Printf("Logged in as %s <%s>. Commands: /history, /clear, /quit\n", status.Name, status.Email)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(userStyle.Render(render.Initials(status.Name)) + " ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit":
			c.Logout(ctx)
			return
		case "/history":
			chats, err := c.Chats(ctx)
			if err != nil {
				printErr(err)
				continue
			}
			for _, msg := range chats {
				printTurn(msg, status.Name)
			}
		case "/clear":
			if err := c.DeleteChats(ctx); err != nil {
				printErr(err)
				continue
			}
			fmt.Println("History cleared.")
		default:
			reply, err := c.SendMessage(ctx, line)
			if err != nil {
				printErr(err)
				continue
			}
			printTurn(models.ChatMessage{Role: models.RoleAssistant, Content: reply}, status.Name)
		}
	}
}

func printTurn(msg models.ChatMessage, userName string) {
	label := userStyle.Render(render.Initials(userName))
	if msg.Role == models.RoleAssistant {
		label = assistantStyle.Render("AI")
	}
	fmt.Println(label)

	for _, seg := range render.Split(msg.Content) {
		if seg.Kind == render.Code {
			fmt.Println(codeStyle.Render(strings.Trim(seg.Text, "\n")))
			continue
		}
		fmt.Println(seg.Text)
	}
}

func printErr(err error) {
	fmt.Println(errStyle.Render(err.Error()))
}

func readPassword() (string, error) {
	if pw := os.Getenv("GEMCHAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set GEMCHAT_PASSWORD")
	}

	fmt.Print("Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
