package fixedpoint

// sinTable содержит sin(2πi/256) в формате Q15.16.
var sinTable = [256]int32{
	0, 1608, 3216, 4821, 6424, 8022, 9616, 11204,
	12785, 14359, 15924, 17479, 19024, 20557, 22078, 23586,
	25080, 26558, 28020, 29466, 30893, 32303, 33692, 35062,
	36410, 37736, 39040, 40320, 41576, 42806, 44011, 45190,
	46341, 47464, 48559, 49624, 50660, 51665, 52639, 53581,
	54491, 55368, 56212, 57022, 57798, 58538, 59244, 59914,
	60547, 61145, 61705, 62228, 62714, 63162, 63572, 63944,
	64277, 64571, 64827, 65043, 65220, 65358, 65457, 65516,
	65536, 65516, 65457, 65358, 65220, 65043, 64827, 64571,
	64277, 63944, 63572, 63162, 62714, 62228, 61705, 61145,
	60547, 59914, 59244, 58538, 57798, 57022, 56212, 55368,
	54491, 53581, 52639, 51665, 50660, 49624, 48559, 47464,
	46341, 45190, 44011, 42806, 41576, 40320, 39040, 37736,
	36410, 35062, 33692, 32303, 30893, 29466, 28020, 26558,
	25080, 23586, 22078, 20557, 19024, 17479, 15924, 14359,
	12785, 11204, 9616, 8022, 6424, 4821, 3216, 1608,
	0, -1608, -3216, -4821, -6424, -8022, -9616, -11204,
	-12785, -14359, -15924, -17479, -19024, -20557, -22078, -23586,
	-25080, -26558, -28020, -29466, -30893, -32303, -33692, -35062,
	-36410, -37736, -39040, -40320, -41576, -42806, -44011, -45190,
	-46341, -47464, -48559, -49624, -50660, -51665, -52639, -53581,
	-54491, -55368, -56212, -57022, -57798, -58538, -59244, -59914,
	-60547, -61145, -61705, -62228, -62714, -63162, -63572, -63944,
	-64277, -64571, -64827, -65043, -65220, -65358, -65457, -65516,
	-65536, -65516, -65457, -65358, -65220, -65043, -64827, -64571,
	-64277, -63944, -63572, -63162, -62714, -62228, -61705, -61145,
	-60547, -59914, -59244, -58538, -57798, -57022, -56212, -55368,
	-54491, -53581, -52639, -51665, -50660, -49624, -48559, -47464,
	-46341, -45190, -44011, -42806, -41576, -40320, -39040, -37736,
	-36410, -35062, -33692, -32303, -30893, -29466, -28020, -26558,
	-25080, -23586, -22078, -20557, -19024, -17479, -15924, -14359,
	-12785, -11204, -9616, -8022, -6424, -4821, -3216, -1608,
}

// log2Table содержит log2(1+i/256) в формате Q15.16, последний элемент равен 1.0.
var log2Table = [257]int32{
	0, 369, 736, 1102, 1466, 1829, 2190, 2551,
	2909, 3267, 3623, 3978, 4331, 4683, 5034, 5384,
	5732, 6079, 6425, 6769, 7112, 7454, 7795, 8134,
	8473, 8810, 9146, 9480, 9814, 10146, 10477, 10807,
	11136, 11464, 11791, 12116, 12440, 12764, 13086, 13407,
	13727, 14046, 14363, 14680, 14996, 15310, 15624, 15937,
	16248, 16559, 16868, 17177, 17484, 17791, 18096, 18401,
	18704, 19007, 19308, 19609, 19909, 20207, 20505, 20802,
	21098, 21393, 21687, 21980, 22272, 22564, 22854, 23144,
	23433, 23720, 24007, 24293, 24579, 24863, 25146, 25429,
	25711, 25992, 26272, 26551, 26830, 27108, 27384, 27660,
	27936, 28210, 28484, 28757, 29029, 29300, 29571, 29840,
	30109, 30378, 30645, 30912, 31178, 31443, 31707, 31971,
	32234, 32496, 32758, 33019, 33279, 33538, 33797, 34055,
	34312, 34569, 34825, 35080, 35334, 35588, 35841, 36094,
	36346, 36597, 36847, 37097, 37346, 37595, 37842, 38090,
	38336, 38582, 38827, 39072, 39316, 39559, 39802, 40044,
	40286, 40527, 40767, 41006, 41246, 41484, 41722, 41959,
	42196, 42432, 42667, 42902, 43137, 43370, 43603, 43836,
	44068, 44300, 44530, 44761, 44990, 45220, 45448, 45676,
	45904, 46131, 46357, 46583, 46809, 47034, 47258, 47482,
	47705, 47928, 48150, 48372, 48593, 48813, 49034, 49253,
	49472, 49691, 49909, 50127, 50344, 50560, 50776, 50992,
	51207, 51422, 51636, 51850, 52063, 52276, 52488, 52700,
	52911, 53122, 53332, 53542, 53751, 53960, 54169, 54377,
	54584, 54791, 54998, 55204, 55410, 55615, 55820, 56025,
	56229, 56432, 56635, 56838, 57040, 57242, 57443, 57644,
	57845, 58045, 58245, 58444, 58643, 58841, 59039, 59237,
	59434, 59631, 59827, 60023, 60219, 60414, 60609, 60803,
	60997, 61190, 61384, 61576, 61769, 61961, 62152, 62343,
	62534, 62725, 62915, 63104, 63294, 63483, 63671, 63859,
	64047, 64234, 64421, 64608, 64794, 64980, 65166, 65351,
	65536,
}
