package catalog

const sampleImage = "images/ProteinSupplements.avif"

var sampleBoxes = []Product{
	{
		Title:       "Energy Boost Box",
		Rating:      "4.6 out of 5 stars",
		Description: "Premium energy drinks to fuel your day",
		Category:    "energy_drinks",
		Image:       sampleImage,
	},
	{
		Title:       "Protein Power Box",
		Rating:      "4.4 out of 5 stars",
		Description: "High-quality protein bars for muscle recovery",
		Category:    "protein_bars",
		Image:       sampleImage,
	},
	{
		Title:       "Whey Protein Box",
		Rating:      "4.7 out of 5 stars",
		Description: "Premium whey protein powders for serious gains",
		Category:    "protein_powders",
		Image:       sampleImage,
	},
	{
		Title:       "Creatine Performance Box",
		Rating:      "4.5 out of 5 stars",
		Description: "Pure creatine monohydrate for enhanced performance",
		Category:    "creatine",
		Image:       sampleImage,
	},
	{
		Title:       "Pre-Workout Power Box",
		Rating:      "4.8 out of 5 stars",
		Description: "Explosive pre-workout formulas to maximize your training",
		Category:    "pre_workout",
		Image:       sampleImage,
	},
	{
		Title:       "Protein Sweets Box",
		Rating:      "4.3 out of 5 stars",
		Description: "Delicious protein treats that satisfy your sweet tooth",
		Category:    "protein_sweets",
		Image:       sampleImage,
	},
	{
		Title:       "Ultimate Combo Box",
		Rating:      "4.9 out of 5 stars",
		Description: "Complete fitness package: energy + protein + recovery",
		Category:    "combo_boxes",
		Image:       sampleImage,
	},
	{
		Title:       "Muscle Building Box",
		Rating:      "4.7 out of 5 stars",
		Description: "Protein powder + creatine + BCAAs for serious muscle growth",
		Category:    "combo_boxes",
		Image:       sampleImage,
	},
	{
		Title:       "Recovery & Hydration Box",
		Rating:      "4.6 out of 5 stars",
		Description: "Post-workout recovery essentials for optimal hydration",
		Category:    "combo_boxes",
		Image:       sampleImage,
	},
	{
		Title:       "Beginner's Starter Box",
		Rating:      "4.4 out of 5 stars",
		Description: "Perfect introduction to supplements for fitness newcomers",
		Category:    "starter_boxes",
		Image:       sampleImage,
	},
	{
		Title:       "Keto-Friendly Box",
		Rating:      "4.5 out of 5 stars",
		Description: "Low-carb, high-protein options for ketogenic diets",
		Category:    "specialty_boxes",
		Image:       sampleImage,
	},
	{
		Title:       "Vegan Protein Box",
		Rating:      "4.6 out of 5 stars",
		Description: "Plant-based protein options for vegan athletes",
		Category:    "specialty_boxes",
		Image:       sampleImage,
	},
}

// SampleBoxes returns a fresh copy of the built-in catalog.
func SampleBoxes() []Product {
	return Clone(sampleBoxes)
}
