package agency

import "time"

const DefaultMaxIterations = 5
const DefaultMaxParseAttempts = 3
const DefaultMaxToolFailures = 2
const DefaultMaxGenerationFailures = 2
const DefaultCallTimeout = 45 * time.Second
const DefaultObservationLimit = 4096
const DefaultTemperature = 0.2

const DefaultSystemPrompt = `You are a research agent working towards a goal set by the user.
Work step by step. Run one tool per reply and read its output before deciding on the next step.
When you have enough information, deliver the result with {{ submit }}.
Today is {{ date }}.`
