package assistant

import (
	"context"
	"fmt"
	"strings"

	"ecosense/internal/models"
)

// systemPrompt frames every hosted model as the EcoSense assistant.
const systemPrompt = `You are the EcoSense assistant. You help people reduce their environmental footprint with practical, specific advice about recycling, energy, water, transport, food and everyday consumption. Keep answers short, concrete and friendly. If a question is outside sustainability, answer briefly and steer back to it.`

// Provider generates the assistant's reply to a user message. history is the
// stored conversation so far, oldest first, without the new message.
type Provider interface {
	Reply(ctx context.Context, history []models.ChatMessage, message string) (string, error)
}

// EchoProvider answers from a built-in tip list, echoing the question back
// when no topic matches. It is the default provider so the server runs
// without any API key.
type EchoProvider struct{}

func NewEchoProvider() *EchoProvider {
	return &EchoProvider{}
}

var echoTopics = []struct {
	keywords []string
	answer   string
}{
	{
		[]string{"recycl"},
		"Rinse containers before recycling and keep soft plastics out of the curbside bin. Most districts accept paper, cardboard, glass, metal cans and rigid plastics marked 1, 2 or 5.",
	},
	{
		[]string{"energy", "electricity", "power"},
		"The quickest wins are switching to LED bulbs, running appliances on full loads and unplugging idle chargers. A programmable thermostat typically cuts heating energy by around 10%.",
	},
	{
		[]string{"water", "shower", "leak"},
		"Shorter showers, fixing leaks and watering gardens at dawn save the most water at home. A single dripping tap can waste over 5,000 liters a year.",
	},
	{
		[]string{"compost"},
		"Compost fruit and vegetable scraps, coffee grounds and yard trimmings. Keep meat, dairy and oils out of a home pile so it stays free of pests and odor.",
	},
	{
		[]string{"transport", "commute", "car", "bike", "bus"},
		"For short trips, cycling or walking beats driving on both emissions and cost. For longer commutes, transit or carpooling roughly halves your per-trip footprint.",
	},
	{
		[]string{"carbon", "footprint", "emission"},
		"The biggest personal levers are usually home heating, driving and flights. Track one month of each and you will know where a change actually matters for you.",
	},
	{
		[]string{"plastic", "packaging"},
		"Swap single-use plastics for refillables where you can and buy loose produce. Soft wrappers usually need a store drop-off point rather than the curbside bin.",
	},
}

func (p *EchoProvider) Reply(ctx context.Context, history []models.ChatMessage, message string) (string, error) {
	lower := strings.ToLower(message)
	for _, topic := range echoTopics {
		for _, kw := range topic.keywords {
			if strings.Contains(lower, kw) {
				return topic.answer, nil
			}
		}
	}

	return fmt.Sprintf("I don't have a tip for %q yet. Ask me about recycling, energy, water, composting, transport or your carbon footprint.", message), nil
}
