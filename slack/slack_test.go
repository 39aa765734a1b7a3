package slack_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"canteenadvisor"
	"canteenadvisor/slack"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

type mockDoer struct {
	resp   *http.Response
	err    error
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return m.resp, m.err
}

func TestNewClient(t *testing.T) {
	webhook := "http://slack.com/webhook"
	client := slack.NewClient(webhook, &mockDoer{})
	must.NotNil(t, client, "expected non-nil client")
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name    string
		doFunc  func(req *http.Request) (*http.Response, error)
		wantErr error
	}{
		{
			name: "success",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
			},
			wantErr: nil,
		},
		{
			name: "failure status",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request", Body: io.NopCloser(bytes.NewBufferString("bad request"))}, nil
			},
			wantErr: fmt.Errorf("failed to post message: 400 Bad Request"),
		},
		{
			name: "do error",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network error")
			},
			wantErr: fmt.Errorf("network error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: tt.doFunc})
			err := client.PostMessage(context.Background(), "#canteen", "Hello, world!")
			should.Equal(t, tt.wantErr, err)
		})
	}
}

func TestFormatRecommendation(t *testing.T) {
	intent := canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch, Goal: canteenadvisor.GoalReduceFat}

	t.Run("with items", func(t *testing.T) {
		res := canteenadvisor.RecommendationResult{
			Items: []canteenadvisor.FoodItem{
				{ID: "f1", Name: "Chicken Salad", Canteen: "Central", Price: 15, Nutrition: canteenadvisor.NutritionProfile{Calories: 350, Protein: 30, Carbs: 10, Fat: 8}},
				{ID: "f3", Name: "Steamed Fish", Canteen: "North", Price: 18.5, Nutrition: canteenadvisor.NutritionProfile{Calories: 280, Protein: 35, Carbs: 2, Fat: 6}},
			},
			Nutrition: canteenadvisor.NutritionProfile{Calories: 630, Protein: 65, Carbs: 12, Fat: 14},
			Reasoning: "Both are lean.",
			Tips:      "Drink water.",
		}

		out := slack.FormatRecommendation(intent, res)
		should.Contains(t, out, "*lunch picks* for _reduce-fat_")
		should.Contains(t, out, "1. *Chicken Salad* (Central) 350 kcal, ¥15.00")
		should.Contains(t, out, "2. *Steamed Fish* (North) 280 kcal, ¥18.50")
		should.Contains(t, out, "Total: 630 kcal, protein 65.0g, carbs 12.0g, fat 14.0g")
		should.Contains(t, out, "Both are lean.")
		should.Contains(t, out, "> Drink water.")
	})

	t.Run("empty result", func(t *testing.T) {
		res := canteenadvisor.RecommendationResult{Reasoning: "no matching items", Tips: "Try another meal."}
		out := slack.FormatRecommendation(canteenadvisor.UserIntent{MealSlot: canteenadvisor.Dinner}, res)
		should.Equal(t, "*dinner picks*\nno matching items\n> Try another meal.\n", out)
	})
}

func TestPostRecommendation(t *testing.T) {
	var payload map[string]any
	client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		must.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
	}})

	err := slack.PostRecommendation(context.Background(), client, "#canteen",
		canteenadvisor.UserIntent{MealSlot: canteenadvisor.Breakfast},
		canteenadvisor.RecommendationResult{Reasoning: "no matching items"})
	must.NoError(t, err)
	should.Equal(t, "#canteen", payload["channel"])
	should.Contains(t, payload["text"], "*breakfast picks*")
}
