package advisor

import "github.com/nikhilbhutani/farmassist/internal/llm"

// Persona is a fixed assistant configuration: system prompts and sampling.
type Persona struct {
	Name        string
	System      []string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

var (
	// CropWeather answers questions about crops and Pakistani weather.
	CropWeather = Persona{
		Name: "crop-weather",
		System: []string{
			"You are an assistant trained to answer questions related to crops and Pakistani weather. If asked about other topics, politely inform the user you can only discuss crops or Pakistani weather.",
			"You can help the user with information such as the best crops to grow in Pakistan's regions, weather patterns affecting farming, and general advice on agricultural practices.",
			"Response should be max 2 sentences",
		},
		Temperature: 0.2,
		TopP:        0.7,
		MaxTokens:   256,
	}

	// FarmManagement covers crop, soil, livestock and equipment management.
	FarmManagement = Persona{
		Name: "farm-management",
		System: []string{
			"You are an assistant trained to answer questions related to Farm Management. If asked about other topics, politely inform the user you can only discuss Farm Management.",
			"You can help the user with Queries related to Farm Management, Crop Management, Soil Management, and General Farming Practices,Crop and Livestock Management,Equipment and Infrastructure Management.",
		},
		Temperature: 0.2,
		TopP:        0.7,
		MaxTokens:   512,
	}

	// WeatherAnalyst gives crop maintenance advice from live weather data.
	WeatherAnalyst = Persona{
		Name: "weather-analyst",
		System: []string{
			"You are an expert assistant that provides guidance on crop maintenance based on real-time weather conditions. " +
				"Your responses should be practical, data-driven, and specific to the given weather data. " +
				"If a query is unrelated to farming or weather-based crop management, politely decline to answer." +
				"Give Answer to the point and provide the best advice based on the weather data.",
		},
		Temperature: 0.2,
		TopP:        0.7,
		MaxTokens:   512,
	}
)

func (p Persona) request(model, user string) llm.ChatRequest {
	msgs := make([]llm.Message, 0, len(p.System)+1)
	for _, s := range p.System {
		msgs = append(msgs, llm.Message{Role: "system", Content: s})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: user})
	return llm.ChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		MaxTokens:   p.MaxTokens,
	}
}
