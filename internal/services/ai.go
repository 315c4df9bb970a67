package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/teamsync-api/internal/models"
)

type AIService struct {
	client *openai.Client
}

type SuggestedSubtask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

func NewAIService(apiKey string) *AIService {
	return &AIService{
		client: openai.NewClient(apiKey),
	}
}

// SuggestSubtasks asks OpenAI GPT to break a task into subtasks
func (s *AIService) SuggestSubtasks(ctx context.Context, task *models.Task) ([]SuggestedSubtask, error) {
	if s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	prompt := fmt.Sprintf(`あなたはタスク分解アシスタントです。以下のタスクを実行可能なサブタスクに分解してください。

タスクのタイトル: %s
タスクの説明:
%s

以下のJSON形式で、サブタスクの配列を返してください:
[
  {
    "title": "サブタスクのタイトル（簡潔に）",
    "description": "サブタスクの詳細説明",
    "priority": "urgent / high / medium / low のいずれか"
  }
]

注意事項:
- サブタスクは3〜8個程度にしてください
- 分解できない場合は空の配列 [] を返してください
- priorityは必ず urgent, high, medium, low のいずれかにしてください
- JSONのみを返し、説明文は含めないでください`, task.Title, task.Description)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)

	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var subtasks []SuggestedSubtask
	if err := json.Unmarshal([]byte(content), &subtasks); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w (response: %s)", err, content)
	}

	for i := range subtasks {
		priority := models.TaskPriority(strings.ToLower(strings.TrimSpace(subtasks[i].Priority)))
		if !priority.IsValid() {
			priority = models.TaskPriorityMedium
		}
		subtasks[i].Priority = string(priority)
	}

	return subtasks, nil
}
