package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"stemchat/internal/domain"
	"stemchat/internal/llm"
)

// rule is one declarative classification rule: pattern in, confidence out.
// Rules are evaluated in order with early exit.
type rule struct {
	re         *regexp.Regexp
	confidence float64
}

// High-confidence ladder covering canonical inventory phrasings. First match
// wins at 0.9.
var inventoryRules = []rule{
	{regexp.MustCompile(`(check|what's|show|get|tell|display|list).*(stock|inventory|supplies|available|items)`), 0.9},
	{regexp.MustCompile(`(low on|short on|running low|out of).*(stock|inventory|supplies|materials|items)`), 0.9},
	{regexp.MustCompile(`need (more|to restock|to reorder|to order)`), 0.9},
	{regexp.MustCompile(`how many .* (do we have|available|in stock)`), 0.9},
	{regexp.MustCompile(`(order|purchase|buy|get more|add|new).*(to|in).*(inventory|stock)`), 0.9},
	{regexp.MustCompile(`inventory (check|status|report|list)`), 0.9},
	{regexp.MustCompile(`(add|new|register).*\d+.*(to|in).*(inventory|stock)`), 0.9},
	{regexp.MustCompile(`#.*(stock|inventory|add|check|available)`), 0.9},
	{regexp.MustCompile(`(pencils|microscopes|kits|equipment|materials|supplies).*(available|stock|inventory)`), 0.9},
}

// Intent rules, evaluated in priority order during execution. Most specific
// first; anything unmatched falls through to a stock check.
var (
	addIntentRe      = regexp.MustCompile(`(add|new).*\d+.*(to|in).*(inventory|stock)`)
	addShortIntentRe = regexp.MustCompile(`add.*\d+.*new`)
	lowStockIntentRe = regexp.MustCompile(`(low on|short on|need|out of|running low|restock|restocking|need to (order|reorder)|what.*need)`)
	stockIntentRe    = regexp.MustCompile(`(check|what's|show|get|tell|display).*(stock|inventory|available)`)
	stockBareRe      = regexp.MustCompile(`(available|stock|inventory)`)
	quantityIntentRe = regexp.MustCompile(`how many .* (do we have|available|in stock)`)
	orderIntentRe    = regexp.MustCompile(`(order|purchase|buy|get more)`)
)

// Cross-domain guard: lesson/curriculum vocabulary hijacks nothing here
// unless a strong inventory cue is also present.
var (
	lessonTerms          = []string{"lesson", "curriculum", "plan", "worksheet", "activity", "grade"}
	strongInventoryTerms = []string{"inventory", "stock", "supplies", "materials", "order", "restock"}
)

var inventoryKeywords = []string{
	"inventory", "stock", "supplies", "materials", "items",
	"pencils", "chemistry set", "equipment", "tools",
	"low on", "need", "order", "shortage", "available",
	"check stock", "how many", "count", "quantity",
}

var weakInventoryWords = []string{"stock", "inventory", "supplies", "materials", "items", "available", "add", "check"}

// InventoryAgent manages inventory tracking, stock levels, and supply chain
// queries for STEM center materials.
type InventoryAgent struct {
	gen    Generator
	logger *slog.Logger
}

func NewInventoryAgent(gen Generator, logger *slog.Logger) *InventoryAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryAgent{gen: gen, logger: logger}
}

func (a *InventoryAgent) Name() string { return "InventoryAgent" }

func (a *InventoryAgent) Description() string {
	return "Manages inventory tracking, stock levels, and supply chain for STEM center materials"
}

func (a *InventoryAgent) Capabilities() []string {
	return []string{
		"Check current stock levels",
		"Alert on low inventory items",
		"Search for specific materials",
		"Look up supplier information",
		"Generate ordering links",
		"Track inventory history",
		"Categorize supplies",
		"Set minimum stock thresholds",
	}
}

// normalize strips the trigger marker and surrounding whitespace and
// lowercases the text.
func normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(text), domain.TriggerMarker)))
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// CanHandle classifies the message through the layered ladder: guard, rule
// ladder, keyword density, weak cue.
func (a *InventoryAgent) CanHandle(ctx context.Context, text string, rctx domain.RouteContext) (bool, float64) {
	msg := normalize(text)

	// Guard: lesson/curriculum requests belong to the lesson plan agent
	// unless the message also carries a strong inventory cue.
	if containsAny(msg, lessonTerms) && !containsAny(msg, strongInventoryTerms) {
		return false, 0.0
	}

	for _, r := range inventoryRules {
		if r.re.MatchString(msg) {
			return true, r.confidence
		}
	}

	hits := 0
	for _, kw := range inventoryKeywords {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	if hits >= 2 {
		return true, 0.7
	}
	if hits == 1 {
		return true, 0.5
	}

	if containsAny(msg, weakInventoryWords) {
		return true, 0.4
	}
	return false, 0.0
}

// Execute re-classifies with intent-specific rules in priority order and
// dispatches to the matching handler, with a stock check as the default.
func (a *InventoryAgent) Execute(ctx context.Context, text string, rctx domain.RouteContext, s Store) domain.AgentResult {
	msg := normalize(text)

	switch {
	case addIntentRe.MatchString(msg) || addShortIntentRe.MatchString(msg):
		return a.handleAddItem(ctx, text, s)
	case lowStockIntentRe.MatchString(msg):
		return a.handleLowStock(ctx, text, s)
	case stockIntentRe.MatchString(msg) || stockBareRe.MatchString(msg):
		return a.handleStockCheck(ctx, text, s)
	case quantityIntentRe.MatchString(msg):
		return a.handleStockCheck(ctx, text, s)
	case orderIntentRe.MatchString(msg):
		return a.handleOrderRequest(ctx, text, s)
	default:
		return a.handleStockCheck(ctx, text, s)
	}
}

// --- entity extraction ---

var (
	allInventoryRe     = regexp.MustCompile(`\b(all|everything|complete|entire|full|whole)\b.*(inventory|stock|items|supplies)`)
	showAllRe          = regexp.MustCompile(`(show|list|display|get).*(all|everything|complete)`)
	genericLowRe       = regexp.MustCompile(`(what|which).*(need|low|restock)`)
	concreteItemWordRe = regexp.MustCompile(`\b(pencil|marker|beaker|arduino|kit|box|pack|microscope|lab)\b`)
)

var extractionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:add|new).*\d+.*(?:new|of)?\s+([a-z\s]+?)(?:\s+to|\s+in|\?|$)`),
	regexp.MustCompile(`(?:stock|inventory|available).*of\s+([a-z\s]+?)(?:\?|$)`),
	regexp.MustCompile(`(?:check|show|get|tell|what's).*?([a-z\s]+?)(?:\s+available|\s+stock|\s+inventory|\?|$)`),
	regexp.MustCompile(`(?:low on|short on|need|out of)\s+([a-z\s]+?)(?:\s+for|\?|$)`),
	regexp.MustCompile(`(?:how many|check|stock of)\s+([a-z\s]+?)(?:\s+do|\?|$)`),
	regexp.MustCompile(`(?:order|buy|purchase)\s+([a-z\s]+?)(?:\s+from|\?|$)`),
	regexp.MustCompile(`([a-z\s]+?)\s+(?:stock|inventory|supplies)`),
}

var extractionStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "some": true, "more": true, "any": true,
	"all": true, "everything": true, "complete": true, "entire": true, "full": true,
	"me": true, "restocking": true, "restock": true, "need": true, "items": true,
	"things": true, "stuff": true, "current": true, "show": true, "check": true,
	"get": true, "tell": true, "what's": true, "display": true, "list": true,
}

// extractItemName pulls a candidate entity phrase out of the message.
// It returns "" when the message asks for the aggregate view (all inventory,
// or generic "what's low" without a named item) so callers show a listing
// instead of looking up one entity.
func extractItemName(text string) string {
	msg := normalize(text)

	if allInventoryRe.MatchString(msg) || showAllRe.MatchString(msg) {
		return ""
	}
	if genericLowRe.MatchString(msg) && !concreteItemWordRe.MatchString(msg) {
		return ""
	}

	for _, p := range extractionPatterns {
		m := p.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		var words []string
		for _, w := range strings.Fields(candidate) {
			if !extractionStopWords[w] && len(w) > 1 {
				words = append(words, w)
			}
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}

// --- category inference ---

var categoryBuckets = []struct {
	category string
	words    []string
}{
	{"Lab Equipment", []string{"microscope", "beaker", "flask", "test tube", "bunsen", "lab", "equipment"}},
	{"Stationery", []string{"pencil", "pen", "marker", "paper", "notebook", "eraser"}},
	{"Electronics", []string{"arduino", "sensor", "circuit", "battery", "wire", "led", "resistor"}},
	{"Kits & Sets", []string{"kit", "set", "box", "pack"}},
}

func inferCategory(itemName string) string {
	name := strings.ToLower(itemName)
	for _, b := range categoryBuckets {
		if containsAny(name, b.words) {
			return b.category
		}
	}
	return "General Supplies"
}

// --- fact payloads ---

type itemFacts struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Category     string  `json:"category"`
	Location     string  `json:"location"`
	MinThreshold float64 `json:"min_threshold"`
	Status       string  `json:"status"`
	IsLow        bool    `json:"is_low"`
	IsCritical   bool    `json:"is_critical"`
}

func factsFor(it domain.InventoryItem) itemFacts {
	location := it.Location
	if location == "" {
		location = "Not specified"
	}
	return itemFacts{
		Name:         it.Name,
		Quantity:     it.Quantity,
		Unit:         it.Unit,
		Category:     it.Category,
		Location:     location,
		MinThreshold: it.MinQuantity,
		Status:       it.Status(),
		IsLow:        it.IsLow(),
		IsCritical:   it.IsCritical(),
	}
}

// --- handlers ---

func (a *InventoryAgent) handleStockCheck(ctx context.Context, text string, s Store) domain.AgentResult {
	itemName := extractItemName(text)

	if itemName == "" {
		return a.handleFullInventory(ctx, text, s)
	}

	items, err := s.SearchItems(ctx, itemName)
	if err != nil {
		return storeFailure("look up inventory", err)
	}

	if len(items) == 0 {
		return a.suggestSimilar(ctx, itemName, s)
	}

	facts := make([]itemFacts, 0, len(items))
	for _, it := range items {
		facts = append(facts, factsFor(it))
	}
	response := a.renderStockResponse(ctx, text, facts)

	summaries := make([]map[string]any, 0, len(items))
	for _, it := range items {
		summaries = append(summaries, map[string]any{"name": it.Name, "quantity": it.Quantity, "unit": it.Unit})
	}
	return domain.AgentResult{
		Success: true,
		Message: response,
		Data:    map[string]any{"items": summaries, "facts": facts},
		Actions: []string{"stock_check"},
	}
}

func (a *InventoryAgent) handleFullInventory(ctx context.Context, text string, s Store) domain.AgentResult {
	items, err := s.AllItems(ctx)
	if err != nil {
		return storeFailure("list inventory", err)
	}
	if len(items) == 0 {
		return domain.AgentResult{
			Success: true,
			Message: "Inventory is empty. Start by adding items!",
			Actions: []string{"empty_inventory"},
		}
	}

	facts := make([]itemFacts, 0, len(items))
	for _, it := range items {
		facts = append(facts, factsFor(it))
	}
	response := a.renderFullInventoryResponse(ctx, text, facts)
	return domain.AgentResult{
		Success: true,
		Message: response,
		Data:    map[string]any{"total_items": len(items)},
		Actions: []string{"full_inventory_check"},
	}
}

// suggestSimilar runs a word-overlap similarity pass over all entities and
// proposes near matches before giving up with a creation hint.
func (a *InventoryAgent) suggestSimilar(ctx context.Context, itemName string, s Store) domain.AgentResult {
	all, err := s.AllItems(ctx)
	if err != nil {
		return storeFailure("search inventory", err)
	}

	queryWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(itemName)) {
		queryWords[w] = true
	}

	var similar []string
	for _, it := range all {
		for _, w := range strings.Fields(strings.ToLower(it.Name)) {
			if queryWords[w] {
				similar = append(similar, it.Name)
				break
			}
		}
	}
	sort.Strings(similar)
	if len(similar) > 5 {
		similar = similar[:5]
	}

	if len(similar) > 0 {
		return domain.AgentResult{
			Success: false,
			Message: fmt.Sprintf("No items found matching '%s'. Did you mean: %s?", itemName, strings.Join(similar, ", ")),
			Data:    map[string]any{"similar_items": similar},
			Actions: []string{"stock_check", "suggestion"},
		}
	}
	return domain.AgentResult{
		Success: false,
		Message: fmt.Sprintf("No items found matching '%s'. The inventory might be empty or this item hasn't been added yet. You can add it by saying 'Add [quantity] [item name] to inventory'.", itemName),
		Actions: []string{"stock_check", "item_not_found"},
	}
}

func (a *InventoryAgent) handleLowStock(ctx context.Context, text string, s Store) domain.AgentResult {
	itemName := extractItemName(text)

	if itemName == "" {
		return a.handleAllLowStock(ctx, text, s)
	}

	items, err := s.SearchItems(ctx, itemName)
	if err != nil {
		return storeFailure("look up inventory", err)
	}
	if len(items) == 0 {
		return domain.AgentResult{
			Success: false,
			Message: fmt.Sprintf("Item '%s' not found in inventory. Would you like to add it?", itemName),
			Actions: []string{"item_not_found"},
		}
	}

	item := items[0]
	suppliers, err := s.SuppliersForItem(ctx, itemName)
	if err != nil {
		return storeFailure("look up suppliers", err)
	}

	facts := factsFor(item)
	response := a.renderLowStockResponse(ctx, text, facts, suppliers)

	supplierData := make([]map[string]any, 0, len(suppliers))
	for _, sp := range suppliers {
		supplierData = append(supplierData, map[string]any{"name": sp.Name, "url": sp.OrderURL, "price": sp.PricePerUnit})
	}
	return domain.AgentResult{
		Success: true,
		Message: response,
		Data: map[string]any{
			"item":      map[string]any{"id": item.ID, "name": item.Name, "quantity": item.Quantity, "unit": item.Unit},
			"facts":     facts,
			"suppliers": supplierData,
		},
		Actions: []string{"stock_check", "supplier_lookup"},
	}
}

func (a *InventoryAgent) handleAllLowStock(ctx context.Context, text string, s Store) domain.AgentResult {
	items, err := s.LowStockItems(ctx)
	if err != nil {
		return storeFailure("list low stock", err)
	}
	if len(items) == 0 {
		return domain.AgentResult{
			Success: true,
			Message: "All inventory items are adequately stocked.",
			Actions: []string{"low_stock_check"},
		}
	}

	type lowFact struct {
		itemFacts
		SupplierNames []string
	}
	lowFacts := make([]lowFact, 0, len(items))
	for _, it := range items {
		suppliers, err := s.SuppliersForItem(ctx, it.Name)
		if err != nil {
			return storeFailure("look up suppliers", err)
		}
		names := make([]string, 0, len(suppliers))
		for _, sp := range suppliers {
			names = append(names, sp.Name)
		}
		lowFacts = append(lowFacts, lowFact{itemFacts: factsFor(it), SupplierNames: names})
	}

	var lines []string
	critical := 0
	for _, f := range lowFacts {
		status := "LOW"
		if f.IsCritical {
			status = "CRITICAL"
			critical++
		}
		line := fmt.Sprintf("- %s: %g %s (minimum: %g) - %s", f.Name, f.Quantity, f.Unit, f.MinThreshold, status)
		if len(f.SupplierNames) > 0 {
			n := f.SupplierNames
			if len(n) > 2 {
				n = n[:2]
			}
			line += fmt.Sprintf(" (suppliers: %s)", strings.Join(n, ", "))
		}
		lines = append(lines, line)
	}

	response := llm.OrFallback(ctx, a.logger, "all_low_stock_response", func(ctx context.Context) (string, error) {
		return a.gen.Chat(ctx, llm.ChatRequest{
			Messages: []llm.Message{
				{Role: "system", Content: "You are a helpful inventory management assistant for a STEM center.\n" +
					"When reporting on multiple low stock items, provide a clear summary with:\n" +
					"1. Total count and urgency level\n2. Most critical items highlighted\n" +
					"3. Practical recommendations for restocking\n" +
					"Be professional and concise. Do not use emojis. Organize by urgency if needed."},
				{Role: "user", Content: fmt.Sprintf("User asked: %q\n\nLow stock items summary:\nTotal items needing attention: %d\nCritical items (below 50%% of minimum): %d\n\nDetails:\n%s\n\nProvide a helpful, organized response about these inventory items that need restocking. Highlight the most critical ones and provide actionable recommendations.",
					text, len(lowFacts), critical, strings.Join(lines, "\n"))},
			},
			Temperature: 0.7,
			MaxTokens:   400,
		})
	}, func() string {
		out := fmt.Sprintf("**Low Stock Alert** - %d items need restocking:\n\n", len(lowFacts))
		for _, f := range lowFacts {
			status := "[LOW]"
			if f.IsCritical {
				status = "[CRITICAL]"
			}
			out += fmt.Sprintf("%s %s: %g %s (min: %g)\n", status, f.Name, f.Quantity, f.Unit, f.MinThreshold)
		}
		return out
	})

	itemData := make([]map[string]any, 0, len(items))
	for _, it := range items {
		itemData = append(itemData, map[string]any{"name": it.Name, "quantity": it.Quantity})
	}
	return domain.AgentResult{
		Success: true,
		Message: response,
		Data:    map[string]any{"low_stock_items": itemData},
		Actions: []string{"low_stock_check"},
	}
}

func (a *InventoryAgent) handleOrderRequest(ctx context.Context, text string, s Store) domain.AgentResult {
	itemName := extractItemName(text)
	if itemName == "" {
		return domain.AgentResult{
			Success: false,
			Message: "Please specify which item you'd like to order.",
			Actions: []string{"order_request"},
		}
	}

	suppliers, err := s.SuppliersForItem(ctx, itemName)
	if err != nil {
		return storeFailure("look up suppliers", err)
	}
	if len(suppliers) == 0 {
		return domain.AgentResult{
			Success: false,
			Message: fmt.Sprintf("No suppliers found for '%s'. Please add supplier information first.", itemName),
			Actions: []string{"supplier_not_found"},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Order Options for '%s':**\n\n", itemName)
	supplierData := make([]map[string]any, 0, len(suppliers))
	for _, sp := range suppliers {
		fmt.Fprintf(&b, "**%s**\n", sp.Name)
		fmt.Fprintf(&b, "  • Price: $%g per unit\n", sp.PricePerUnit)
		fmt.Fprintf(&b, "  • Contact: %s\n", sp.ContactInfo)
		fmt.Fprintf(&b, "  • Order: %s\n\n", sp.OrderURL)
		supplierData = append(supplierData, map[string]any{"name": sp.Name, "url": sp.OrderURL})
	}
	b.WriteString("Click on a link to proceed with ordering.")

	return domain.AgentResult{
		Success: true,
		Message: b.String(),
		Data:    map[string]any{"suppliers": supplierData},
		Actions: []string{"supplier_lookup", "order_request"},
	}
}

// --- add item ---

var (
	quantityRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	addPatterns = []*regexp.Regexp{
		// "Add 25 new beakers to the inventory" -> "beakers"
		regexp.MustCompile(`add\s+\d+\s+(?:new\s+)?([a-z\s]+?)(?:\s+to\s+(?:the\s+)?(?:inventory|stock)|\s+in\s+(?:the\s+)?(?:inventory|stock)|\?|$)`),
		// "Add 10 microscopes" -> "microscopes"
		regexp.MustCompile(`add\s+\d+\s+([a-z\s]+?)(?:\s+to|\s+in|\?|$)`),
		// "Add 5 of pencils" -> "pencils"
		regexp.MustCompile(`add\s+\d+\s+of\s+([a-z\s]+?)(?:\s+to|\s+in|\?|$)`),
	}
	addStopWords = map[string]bool{
		"the": true, "a": true, "an": true, "new": true, "to": true,
		"in": true, "inventory": true, "stock": true, "of": true,
	}
)

const defaultMinQuantity = 10.0

// handleAddItem mutates inventory: it extracts a quantity and item name,
// then either increments an existing entity or creates a new one, appending
// a transaction record either way. Substring matching on the name can attach
// the quantity to a loosely similar existing entity; that risk is inherent
// to the matching strategy and accepted here.
func (a *InventoryAgent) handleAddItem(ctx context.Context, text string, s Store) domain.AgentResult {
	msg := normalize(text)

	qm := quantityRe.FindStringSubmatch(text)
	if qm == nil {
		return domain.AgentResult{
			Success: false,
			Message: "I couldn't find a quantity in your message. Please specify a number, e.g., 'Add 10 microscopes'",
			Actions: []string{"add_item_help"},
		}
	}
	quantity, err := strconv.ParseFloat(qm[1], 64)
	if err != nil {
		return domain.AgentResult{
			Success: false,
			Message: "I couldn't find a quantity in your message. Please specify a number, e.g., 'Add 10 microscopes'",
			Actions: []string{"add_item_help"},
		}
	}

	// Add-specific patterns first; they are more accurate for add commands.
	var itemName string
	for _, p := range addPatterns {
		m := p.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		var words []string
		for _, w := range strings.Fields(strings.TrimSpace(m[1])) {
			if !addStopWords[w] && len(w) > 1 {
				words = append(words, w)
			}
		}
		if len(words) > 0 {
			itemName = strings.Join(words, " ")
			break
		}
	}
	if itemName == "" {
		itemName = extractItemName(text)
	}
	if itemName == "" {
		return domain.AgentResult{
			Success: false,
			Message: "I couldn't identify the item name. Please specify what you want to add, e.g., 'Add 10 microscopes'",
			Actions: []string{"add_item_help"},
		}
	}

	existing, err := s.SearchItems(ctx, itemName)
	if err != nil {
		return storeFailure("look up inventory", err)
	}

	if len(existing) > 0 {
		item := existing[0]
		oldQuantity := item.Quantity
		newQuantity, err := s.AdjustQuantity(ctx, item.ID, quantity, "add",
			fmt.Sprintf("Added via chat: %s", text), nil)
		if err != nil {
			return storeFailure("update quantity", err)
		}
		return domain.AgentResult{
			Success: true,
			Message: fmt.Sprintf("Added %g %s of '%s'. New total: %g %s (was %g)",
				quantity, item.Unit, item.Name, newQuantity, item.Unit, oldQuantity),
			Data: map[string]any{
				"item": map[string]any{"id": item.ID, "name": item.Name, "quantity": newQuantity, "unit": item.Unit},
			},
			Actions: []string{"add_item", "update_quantity"},
		}
	}

	category := inferCategory(itemName)
	created, err := s.CreateItem(ctx, domain.InventoryItem{
		Name:        itemName,
		Category:    category,
		Quantity:    quantity,
		Unit:        "units",
		MinQuantity: defaultMinQuantity,
		Description: "Added via chat",
	}, fmt.Sprintf("Initial addition via chat: %s", text), nil)
	if err != nil {
		return storeFailure("create item", err)
	}

	return domain.AgentResult{
		Success: true,
		Message: fmt.Sprintf("Added new item '%s' to inventory with quantity %g %s (category: %s)",
			created.Name, quantity, created.Unit, category),
		Data: map[string]any{
			"item": map[string]any{
				"id": created.ID, "name": created.Name, "quantity": created.Quantity,
				"unit": created.Unit, "category": created.Category,
			},
		},
		Actions: []string{"add_item", "create_item"},
	}
}

// storeFailure converts a storage error into a failed result at the
// capability-contract boundary.
func storeFailure(op string, err error) domain.AgentResult {
	return domain.AgentResult{
		Success: false,
		Message: fmt.Sprintf("Sorry, I couldn't %s right now: %v", op, err),
		Actions: []string{"error"},
	}
}

// --- natural-language rendering ---

func renderFactLines(facts []itemFacts) string {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("- %s: %g %s (min: %g, status: %s, location: %s)",
			f.Name, f.Quantity, f.Unit, f.MinThreshold, f.Status, f.Location))
	}
	return strings.Join(lines, "\n")
}

func (a *InventoryAgent) renderStockResponse(ctx context.Context, text string, facts []itemFacts) string {
	return llm.OrFallback(ctx, a.logger, "stock_response", func(ctx context.Context) (string, error) {
		return a.gen.Chat(ctx, llm.ChatRequest{
			Messages: []llm.Message{
				{Role: "system", Content: "You are a helpful inventory management assistant for a STEM center.\n" +
					"Respond naturally and conversationally to inventory queries. Be concise and professional.\n" +
					"Do not use emojis. If stock is low, be helpful about what to do next."},
				{Role: "user", Content: fmt.Sprintf("User asked: %q\n\nCurrent inventory data:\n%s\n\nProvide a helpful, natural response about the inventory status.",
					text, renderFactLines(facts))},
			},
			Temperature: 0.7,
			MaxTokens:   256,
		})
	}, func() string {
		parts := make([]string, 0, len(facts))
		for _, f := range facts {
			parts = append(parts, fmt.Sprintf("%s (%g %s)", f.Name, f.Quantity, f.Unit))
		}
		return fmt.Sprintf("Found %d item(s): %s", len(facts), strings.Join(parts, ", "))
	})
}

func (a *InventoryAgent) renderFullInventoryResponse(ctx context.Context, text string, facts []itemFacts) string {
	byCategory := map[string][]itemFacts{}
	var categories []string
	for _, f := range facts {
		if _, seen := byCategory[f.Category]; !seen {
			categories = append(categories, f.Category)
		}
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	var b strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&b, "\n%s:\n", cat)
		for _, f := range byCategory[cat] {
			fmt.Fprintf(&b, "  - %s: %g %s (status: %s)\n", f.Name, f.Quantity, f.Unit, f.Status)
		}
	}

	return llm.OrFallback(ctx, a.logger, "full_inventory_response", func(ctx context.Context) (string, error) {
		return a.gen.Chat(ctx, llm.ChatRequest{
			Messages: []llm.Message{
				{Role: "system", Content: "You are a helpful inventory management assistant for a STEM center.\n" +
					"When showing complete inventory, organize it clearly by category and highlight any low-stock items.\n" +
					"Be professional and concise. Do not use emojis. Use clear text-based formatting."},
				{Role: "user", Content: fmt.Sprintf("User asked: %q\n\nComplete inventory organized by category:\n%s\n\nProvide a helpful summary of the inventory, organized by category. Mention if there are any items that need attention.",
					text, b.String())},
			},
			Temperature: 0.7,
			MaxTokens:   400,
		})
	}, func() string {
		var out strings.Builder
		out.WriteString("**Complete Inventory:**\n\n")
		for _, cat := range categories {
			fmt.Fprintf(&out, "**%s**\n", cat)
			for _, f := range byCategory[cat] {
				status := "OK"
				if f.Status != "adequate" {
					status = "LOW"
				}
				fmt.Fprintf(&out, "  [%s] %s: %g %s\n", status, f.Name, f.Quantity, f.Unit)
			}
			out.WriteString("\n")
		}
		return out.String()
	})
}

func (a *InventoryAgent) renderLowStockResponse(ctx context.Context, text string, facts itemFacts, suppliers []domain.Supplier) string {
	supplierLines := "No suppliers configured"
	if len(suppliers) > 0 {
		var lines []string
		for _, sp := range suppliers {
			lines = append(lines, fmt.Sprintf("- %s: $%g/%s, lead time: %d days, order: %s",
				sp.Name, sp.PricePerUnit, facts.Unit, sp.LeadTimeDays, sp.OrderURL))
		}
		supplierLines = strings.Join(lines, "\n")
	}

	statusLine := "Adequate"
	if facts.IsCritical {
		statusLine = "CRITICAL - below 50% of minimum"
	} else if facts.IsLow {
		statusLine = "LOW - at or below minimum"
	}

	return llm.OrFallback(ctx, a.logger, "low_stock_response", func(ctx context.Context) (string, error) {
		return a.gen.Chat(ctx, llm.ChatRequest{
			Messages: []llm.Message{
				{Role: "system", Content: "You are a helpful inventory management assistant for a STEM center.\n" +
					"When items are low or out of stock, provide clear, actionable advice.\n" +
					"Be professional and concise. Include supplier information when available.\n" +
					"Do not use emojis. Use clear text-based formatting."},
				{Role: "user", Content: fmt.Sprintf("User said: %q\n\nItem: %s\nCurrent stock: %g %s\nMinimum threshold: %g %s\nStatus: %s\nLocation: %s\n\nAvailable suppliers:\n%s\n\nProvide a natural, helpful response about this inventory situation. If suppliers are available, mention them with ordering links.",
					text, facts.Name, facts.Quantity, facts.Unit, facts.MinThreshold, facts.Unit, statusLine, facts.Location, supplierLines)},
			},
			Temperature: 0.7,
			MaxTokens:   300,
		})
	}, func() string {
		status := "OK"
		if facts.IsLow {
			status = "LOW"
		}
		out := fmt.Sprintf("Status: %s - %s: %g %s", status, facts.Name, facts.Quantity, facts.Unit)
		if len(suppliers) > 0 {
			names := make([]string, 0, len(suppliers))
			for _, sp := range suppliers {
				names = append(names, sp.Name)
			}
			out += "\n\nSuppliers: " + strings.Join(names, ", ")
		}
		return out
	})
}
