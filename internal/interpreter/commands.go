package interpreter

import (
	"fmt"
	"strconv"
	"strings"

	"ablevoice/internal/domain"
)

// HelpMessage is spoken when no page handles the help event.
const HelpMessage = "You can say: go to home, go to cart, checkout, or profile. " +
	"Search for a dish, add followed by a dish name, add item followed by a number, " +
	"or update quantity followed by a dish and a number. " +
	"Say voice mode, deaf mode, or mute mode to change how you interact."

var modeConfirmations = map[domain.AccessibilityMode]string{
	domain.ModeVoice: "Voice mode activated. Say help for available commands.",
	domain.ModeDeaf:  "Deaf mode activated. Feedback will be shown on screen.",
	domain.ModeMute:  "Mute mode activated. Use the screen to give commands.",
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"zero": 0, "a": 1, "an": 1,
}

// DefaultTable is the canonical command vocabulary.
func DefaultTable() *Table {
	return NewTable(
		Rule{Name: "help", Class: ClassHelp, Kind: MatchExact, Phrases: []string{"help"}, Handle: handleHelp},
		Rule{Name: "help", Class: ClassHelp, Kind: MatchContains, Phrases: []string{
			"what can i say", "what can i do", "show commands", "available commands",
		}, Handle: handleHelp},

		Rule{Name: "go-home", Class: ClassNavigation, Kind: MatchExact, Phrases: []string{
			"go to home", "home", "go home",
		}, Handle: navigate("/home", "Navigating to home page")},
		Rule{Name: "go-cart", Class: ClassNavigation, Kind: MatchExact, Phrases: []string{
			"go to cart", "show cart", "view cart", "cart",
		}, Handle: navigate("/cart", "Opening your cart")},
		Rule{Name: "go-checkout", Class: ClassNavigation, Kind: MatchExact, Phrases: []string{
			"proceed to checkout", "go to checkout", "checkout", "place order",
		}, Handle: navigate("/checkout", "Taking you to checkout")},
		Rule{Name: "go-profile", Class: ClassNavigation, Kind: MatchExact, Phrases: []string{
			"go to profile", "profile", "my profile",
		}, Handle: navigate("/profile", "Opening your profile")},

		Rule{Name: "clear-cart", Class: ClassAction, Kind: MatchExact, Phrases: []string{
			"clear cart", "empty cart", "remove all items",
		}, Handle: handleClearCart},
		Rule{Name: "search", Class: ClassAction, Kind: MatchPrefix, Phrases: []string{"search for"}, Handle: handleSearch},
		Rule{Name: "update-quantity", Class: ClassAction, Kind: MatchPrefix, Phrases: []string{
			"update quantity", "set quantity",
		}, Handle: handleUpdateQuantity},
		Rule{Name: "add-item-number", Class: ClassAction, Kind: MatchPrefix, Phrases: []string{"add item"}, Handle: handleAddByPosition},
		Rule{Name: "add", Class: ClassAction, Kind: MatchPrefix, Phrases: []string{"add"}, Handle: handleAddByName},
		Rule{Name: "filter", Class: ClassAction, Kind: MatchPrefix, Phrases: []string{"filter by"}, Handle: handleFilter},
		Rule{Name: "show-restaurants", Class: ClassAction, Kind: MatchExact, Phrases: []string{
			"show restaurants", "restaurants", "view restaurants",
		}, Handle: switchTab("restaurants", "Showing restaurants")},
		Rule{Name: "show-foods", Class: ClassAction, Kind: MatchExact, Phrases: []string{
			"show foods", "foods", "view foods",
		}, Handle: switchTab("foods", "Showing food items")},
		Rule{Name: "show-details", Class: ClassAction, Kind: MatchExact, Phrases: []string{
			"yes", "yes please", "show details", "tell me more", "details",
		}, Handle: handleDetails},
		Rule{Name: "veg-only", Class: ClassAction, Kind: MatchContains, Phrases: []string{
			"vegetarian", "veg only",
		}, Handle: handleVegOnly},
		Rule{Name: "show-all", Class: ClassAction, Kind: MatchExact, Phrases: []string{
			"show all", "show everything",
		}, Handle: handleShowAll},

		Rule{Name: "voice-mode", Class: ClassMode, Kind: MatchContains, Phrases: []string{"voice mode"}, Handle: switchMode(domain.ModeVoice)},
		Rule{Name: "deaf-mode", Class: ClassMode, Kind: MatchContains, Phrases: []string{"deaf mode"}, Handle: switchMode(domain.ModeDeaf)},
		Rule{Name: "mute-mode", Class: ClassMode, Kind: MatchContains, Phrases: []string{"mute mode"}, Handle: switchMode(domain.ModeMute)},
	)
}

func handleHelp(in *Interpreter, m Match) (domain.Outcome, error) {
	event := domain.CommandEvent{Kind: domain.EventHelp, Command: m.Command}
	outcome := domain.Outcome{Kind: domain.OutcomeEvent, Event: &event}
	if in.publish(event) > 0 {
		return outcome, nil
	}
	// no page-level help is mounted
	in.notify(domain.NotifyInfo, "Say a command such as \"go to cart\" or \"add porotta\"")
	outcome.Spoken = in.say(HelpMessage)
	return outcome, nil
}

func navigate(path, confirmation string) Handler {
	return func(in *Interpreter, _ Match) (domain.Outcome, error) {
		if in.nav != nil {
			in.nav.GoTo(path)
		}
		in.notify(domain.NotifySuccess, confirmation)
		return domain.Outcome{
			Kind:   domain.OutcomeNavigation,
			Route:  path,
			Spoken: in.say(confirmation),
		}, nil
	}
}

func handleClearCart(in *Interpreter, m Match) (domain.Outcome, error) {
	return in.emit(domain.CommandEvent{Kind: domain.EventClearCart, Command: m.Command}, "Clearing your cart"), nil
}

func handleSearch(in *Interpreter, m Match) (domain.Outcome, error) {
	event := domain.CommandEvent{
		Kind:    domain.EventSearch,
		Command: m.Command,
		Payload: domain.Search{Term: m.Rest},
	}
	return in.emit(event, fmt.Sprintf("Searching for %s", m.Rest)), nil
}

// handleUpdateQuantity accepts "<item> <n>", "<item> to <n>" and
// "of <item> to <n>".
func handleUpdateQuantity(in *Interpreter, m Match) (domain.Outcome, error) {
	words := strings.Fields(m.Rest)
	if len(words) > 0 && words[0] == "of" {
		words = words[1:]
	}
	if len(words) < 2 {
		return domain.Outcome{}, failf(nil, "Please say the item name followed by the new quantity.")
	}

	last := words[len(words)-1]
	quantity, err := parseNumber(last)
	if err != nil {
		return domain.Outcome{}, failf(err, "Sorry, %s is not a valid quantity.", last)
	}
	nameWords := words[:len(words)-1]
	if len(nameWords) > 1 && nameWords[len(nameWords)-1] == "to" {
		nameWords = nameWords[:len(nameWords)-1]
	}
	name := strings.Join(nameWords, " ")

	item, err := in.lookup(name)
	if err != nil {
		return domain.Outcome{}, err
	}

	event := domain.CommandEvent{
		Kind:    domain.EventUpdateQuantity,
		Command: m.Command,
		Payload: domain.UpdateQuantity{Item: item, Quantity: quantity},
	}
	confirmation := fmt.Sprintf("Updated %s quantity to %d", item.Name, quantity)
	if quantity == 0 {
		confirmation = fmt.Sprintf("Removed %s from your cart", item.Name)
	}
	return in.emit(event, confirmation), nil
}

// handleAddByPosition accepts "add item <n>". Anything else after "item"
// is treated as a name, so "add item porotta" adds porotta.
func handleAddByPosition(in *Interpreter, m Match) (domain.Outcome, error) {
	position, err := parseNumber(m.Rest)
	if err != nil {
		if m.Rest != "" {
			return handleAddByName(in, m)
		}
		return domain.Outcome{}, failf(err, "Sorry, %s is not a valid item number.", m.Rest)
	}
	if in.catalog == nil {
		return domain.Outcome{}, failf(nil, "Sorry, the menu is not available.")
	}
	item, ok := in.catalog.At(position)
	if !ok {
		return domain.Outcome{}, failf(nil, "Sorry, there is no item number %d.", position)
	}
	return in.addToCart(m, item, 1), nil
}

// handleAddByName accepts "<item>" and "<n> <item>".
func handleAddByName(in *Interpreter, m Match) (domain.Outcome, error) {
	quantity := 1
	name := m.Rest
	if first, remainder, ok := strings.Cut(m.Rest, " "); ok {
		if n, err := parseNumber(first); err == nil {
			if n <= 0 {
				return domain.Outcome{}, failf(nil, "Sorry, %s is not a valid quantity.", first)
			}
			quantity = n
			name = remainder
		}
	}

	item, err := in.lookup(name)
	if err != nil {
		return domain.Outcome{}, err
	}
	return in.addToCart(m, item, quantity), nil
}

func (in *Interpreter) addToCart(m Match, item domain.MenuItem, quantity int) domain.Outcome {
	event := domain.CommandEvent{
		Kind:    domain.EventAddToCart,
		Command: m.Command,
		Payload: domain.AddToCart{Item: item, Quantity: quantity},
	}
	confirmation := fmt.Sprintf("Added %s to your cart", item.Name)
	if quantity > 1 {
		confirmation = fmt.Sprintf("Added %d %s to your cart", quantity, item.Name)
	}
	return in.emit(event, confirmation)
}

func (in *Interpreter) lookup(name string) (domain.MenuItem, error) {
	if in.catalog == nil {
		return domain.MenuItem{}, failf(nil, "Sorry, the menu is not available.")
	}
	item, ok := in.catalog.Lookup(name)
	if !ok {
		return domain.MenuItem{}, failf(nil, "Sorry, I couldn't find %s on the menu.", name)
	}
	return item, nil
}

func handleFilter(in *Interpreter, m Match) (domain.Outcome, error) {
	category := "All"
	if m.Rest != "all" {
		if in.catalog == nil {
			return domain.Outcome{}, failf(nil, "Sorry, the menu is not available.")
		}
		resolved, ok := in.catalog.Category(m.Rest)
		if !ok {
			return domain.Outcome{}, failf(nil, "Sorry, there is no %s category.", m.Rest)
		}
		category = resolved
	}
	event := domain.CommandEvent{Kind: domain.EventSetCategory, Command: m.Command, Payload: category}
	return in.emit(event, fmt.Sprintf("Showing %s items", category)), nil
}

func switchTab(tab, confirmation string) Handler {
	return func(in *Interpreter, m Match) (domain.Outcome, error) {
		return in.emit(domain.CommandEvent{Kind: domain.EventSetTab, Command: m.Command, Payload: tab}, confirmation), nil
	}
}

func handleDetails(in *Interpreter, m Match) (domain.Outcome, error) {
	return in.emit(domain.CommandEvent{Kind: domain.EventShowDetails, Command: m.Command}, "Showing details"), nil
}

func handleVegOnly(in *Interpreter, m Match) (domain.Outcome, error) {
	event := domain.CommandEvent{Kind: domain.EventSetVegOnly, Command: m.Command, Payload: true}
	return in.emit(event, "Showing vegetarian items only"), nil
}

func handleShowAll(in *Interpreter, m Match) (domain.Outcome, error) {
	event := domain.CommandEvent{Kind: domain.EventSetCategory, Command: m.Command, Payload: "All"}
	return in.emit(event, "Showing all items"), nil
}

// switchMode confirms in whichever of the two modes can hear it: before the
// change when leaving voice mode, after it when entering.
func switchMode(target domain.AccessibilityMode) Handler {
	return func(in *Interpreter, _ Match) (domain.Outcome, error) {
		if in.modes == nil {
			return domain.Outcome{}, failf(nil, "Sorry, the mode cannot be changed right now.")
		}

		current := in.modes.Mode()
		if current == target {
			message := fmt.Sprintf("Already in %s mode", target)
			in.notify(domain.NotifyInfo, message)
			return domain.Outcome{
				Kind:   domain.OutcomeModeChange,
				Mode:   target,
				Spoken: in.say(message),
			}, nil
		}

		confirmation := modeConfirmations[target]
		var spoken string
		if current == domain.ModeVoice {
			spoken = in.say(confirmation)
		}
		changed := in.modes.SetMode(target)
		if current != domain.ModeVoice {
			spoken = in.say(confirmation)
		}
		in.notify(domain.NotifySuccess, confirmation)

		return domain.Outcome{
			Kind:    domain.OutcomeModeChange,
			Mode:    target,
			Changed: changed,
			Spoken:  spoken,
		}, nil
	}
}

func parseNumber(word string) (int, error) {
	word = strings.TrimSpace(word)
	if n, ok := numberWords[word]; ok {
		return n, nil
	}
	n, err := strconv.Atoi(word)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative number %d", n)
	}
	return n, nil
}
