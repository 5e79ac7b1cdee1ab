// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import "fmt"

const classifyPrompt = `You are a travel query classifier.

Travel-related includes:
- trip planning
- itineraries
- hotels
- visas
- attractions
- comparisons
- travel safety
- emergency contact numbers in a destination
- medical emergency numbers in a city
- police or ambulance numbers for travelers

Determine:
- is_travel_related (true/false)
- intent: itinerary, visa, hotel, comparison, emergency, attraction, general
- Extract destination, days, budget_type, place1, place2

If the question asks for emergency numbers in a city, intent MUST be: emergency.`

const domainGuardPrompt = `You are a strict classifier.

Determine if the user question is related to tourism or travel.

Tourism includes travel, hotels, flights, transport, food, cultural tips, entry fees,
timings, budget, best time to visit, currency, visas, passports, travel documents,
travel restrictions, itinerary planning, places to visit, embassies, travel emergencies,
lost passports, stolen items, medical emergencies, attractions, monuments, cultural
sites, architecture and geography.

If the question is related to tourism or travel respond ONLY with: ALLOW
If it is unrelated (coding, politics, math, programming, etc.) respond ONLY with: REJECT

Do not explain.

Question: %s`

// NonTravelAnswer is the reply to queries outside the travel domain.
const NonTravelAnswer = "I specialize only in travel-related queries."

const emergencyFallback = "Please contact the local emergency services right away and reach out to your embassy or consulate. " +
	"Your case has been recorded so someone can follow up."

func itineraryPrompt(days int, destination string) string {
	return fmt.Sprintf(`Create a realistic %d-day travel itinerary for %s.
No prices.
Clear daily structure.`, days, destination)
}

func budgetPrompt(days int, destination, budgetType string, amount int, info string) string {
	p := fmt.Sprintf(`Based on verified information below,
estimate total budget for %d days in %s.
Provide breakdown and total.`, days, destination)
	if budgetType != "" {
		p += fmt.Sprintf("\nTravel style: %s.", budgetType)
	}
	if amount > 0 {
		p += fmt.Sprintf("\nThe traveller's stated budget is %d; say whether it is enough.", amount)
	}
	return p + "\n\n" + info
}

func riskPrompt(destination, info string) string {
	return fmt.Sprintf(`Analyze if active travel risks exist for %s.
If yes, list briefly.

%s`, destination, info)
}

func executorPrompt(question, info string) string {
	return fmt.Sprintf(`You are a professional travel assistant.
Answer clearly and concisely.
Remove website junk.

Question:
%s

Verified Info:
%s`, question, info)
}

func comparisonPrompt(place1, place2, info string) string {
	return fmt.Sprintf(`Compare %s and %s for a traveller.
Cover weather, costs, attractions and who each place suits best.

Verified Info:
%s`, place1, place2, info)
}

func emergencyPrompt(question, location, info string) string {
	return fmt.Sprintf(`A traveller needs urgent help.
Give calm, practical steps, the local emergency numbers for %s and how to reach their embassy.

Message:
%s

Verified Info:
%s`, location, question, info)
}

func combineAnswer(itinerary, budget, risk string) string {
	return fmt.Sprintf(`%s

Budget Estimate:
%s

Travel Advisory:
%s`, itinerary, budget, risk)
}
